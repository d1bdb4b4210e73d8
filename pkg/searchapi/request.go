package searchapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request is one call to the retrieval service.
type Request struct {
	Query      string  `validate:"required"`
	K          int     `validate:"min=1,max=100"`
	Alpha      float64 `validate:"min=0,max=1"`
	AIOverview bool
	Stream     bool
}

var validate = validator.New()

func (r Request) Validate() error {
	r.Query = strings.TrimSpace(r.Query)
	if err := validate.Struct(r); err != nil {
		return NewError(KindInvalidRequest, "invalid search request", err)
	}
	return nil
}

// Values encodes the request as /search query parameters.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("q", r.Query)
	v.Set("k", strconv.Itoa(r.K))
	v.Set("alpha", strconv.FormatFloat(r.Alpha, 'f', -1, 64))
	v.Set("ai_overview", strconv.FormatBool(r.AIOverview))
	if r.Stream {
		v.Set("stream", "true")
	}
	return v
}
