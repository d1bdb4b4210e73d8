package searchapi

type PosterSize string

const (
	PosterW200     PosterSize = "w200"
	PosterW300     PosterSize = "w300"
	PosterW500     PosterSize = "w500"
	PosterOriginal PosterSize = "original"
)

const (
	DefaultPosterBaseURL     = "https://image.tmdb.org/t/p/"
	DefaultPlaceholderPoster = "/placeholder-poster.svg"
)

// PosterResolver maps poster path fragments to image URLs. Stateless.
type PosterResolver struct {
	BaseURL     string
	Placeholder string
}

func NewPosterResolver(baseURL, placeholder string) PosterResolver {
	if baseURL == "" {
		baseURL = DefaultPosterBaseURL
	}
	if placeholder == "" {
		placeholder = DefaultPlaceholderPoster
	}
	return PosterResolver{BaseURL: baseURL, Placeholder: placeholder}
}

// URL returns the placeholder for an empty path; unknown sizes fall back to w500.
func (p PosterResolver) URL(path string, size PosterSize) string {
	if path == "" {
		return p.Placeholder
	}
	return p.BaseURL + string(ParsePosterSize(string(size))) + path
}

// PosterURL resolves against the default TMDB image host.
func PosterURL(path string, size PosterSize) string {
	return NewPosterResolver("", "").URL(path, size)
}

func ParsePosterSize(s string) PosterSize {
	switch PosterSize(s) {
	case PosterW200, PosterW300, PosterW500, PosterOriginal:
		return PosterSize(s)
	}
	return PosterW500
}
