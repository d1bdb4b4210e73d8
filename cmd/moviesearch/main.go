package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"moviesearch-client/internal/config"
	"moviesearch-client/internal/pkg/logger"
	"moviesearch-client/internal/render"
	"moviesearch-client/pkg/events"
	"moviesearch-client/pkg/overview"
	"moviesearch-client/pkg/redisbus"
	"moviesearch-client/pkg/search"
	"moviesearch-client/pkg/searchapi"
	"moviesearch-client/pkg/stream"

	pktNats "moviesearch-client/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	jsonOutput bool
	noColor    bool
)

func main() {
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "moviesearch",
		Short: "Natural-language movie search client",
		Long: `moviesearch queries a hybrid movie retrieval service, prints ranked
results as soon as they arrive and types out the AI overview when one
is requested.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				printJSON(map[string]string{"version": version})
			} else {
				fmt.Printf("moviesearch %s\n", version)
			}
		},
	})

	rootCmd.AddCommand(searchCmd(cfg))
	rootCmd.AddCommand(healthCmd(cfg))
	rootCmd.AddCommand(posterCmd(cfg))
	rootCmd.AddCommand(logsCmd(cfg))
	rootCmd.AddCommand(watchCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func searchCmd(cfg *config.Config) *cobra.Command {
	var (
		wantsOverview bool
		noOverview    bool
		resultCount   int
		posters       bool
		posterSize    string
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search movies; without a query, reads one query per line from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
			defer log.Sync()

			publisher, closePublisher := optionalPublisher(cfg, log)
			defer closePublisher()

			var term renderer
			if jsonOutput {
				term = render.NewJSON(os.Stdout)
			} else {
				var opts []render.Option
				if posters {
					opts = append(opts, render.WithPosters(
						searchapi.NewPosterResolver(cfg.Search.PosterBaseURL, cfg.Search.PlaceholderPoster),
						searchapi.ParsePosterSize(posterSize),
					))
				}
				term = render.NewTerminal(os.Stdout, cfg.Search.RevealInterval, opts...)
			}
			defer term.Stop()

			client := searchapi.NewClient(cfg.Search.APIURL, cfg.Search.RequestTimeout, log)
			orch := search.NewOrchestrator(
				client,
				stream.NewChannel(client, log),
				overview.NewDecoder(log),
				search.WithDefaults(cfg.Search.ResultCount, cfg.Search.Alpha),
				search.WithPublisher(publisher),
				search.WithLogger(log),
				search.WithListener(term.Render),
			)
			defer orch.Reset()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			base := search.Query{WantsOverview: wantsOverview && !noOverview, ResultCount: resultCount}

			if len(args) > 0 {
				q := search.ParseQuery(strings.Join(args, " "), base)
				if _, ok := orch.Submit(q); !ok {
					return fmt.Errorf("query is empty")
				}
				if err := term.Wait(ctx); err != nil {
					return err
				}
				if st := orch.State(); st.Failed() {
					return fmt.Errorf("search failed: %s", st.Err.Reason)
				}
				return nil
			}

			return interactive(ctx, orch, term, base)
		},
	}

	cmd.Flags().BoolVarP(&wantsOverview, "overview", "o", true, "Request an AI overview")
	cmd.Flags().BoolVar(&noOverview, "no-overview", false, "Skip the AI overview")
	cmd.Flags().IntVarP(&resultCount, "count", "k", 0, "Number of results (defaults to SEARCH_RESULT_COUNT)")
	cmd.Flags().BoolVar(&posters, "posters", false, "Print poster URLs")
	cmd.Flags().StringVar(&posterSize, "size", string(searchapi.PosterW500), "Poster size (w200, w300, w500, original)")
	return cmd
}

// renderer displays orchestrator states: colored text, or one JSON document
// per settled session with --json.
type renderer interface {
	Render(st search.State)
	Wait(ctx context.Context) error
	Stop()
}

// interactive submits every stdin line as a new search; a new line
// supersedes whatever the previous one was still doing.
func interactive(ctx context.Context, orch *search.Orchestrator, term renderer, base search.Query) error {
	if !jsonOutput {
		fmt.Println(color.New(color.Faint).Sprint("Type a query (/ai, /noai, /k:<n>). Empty line resets, Ctrl-D quits."))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return term.Wait(ctx)
			}
			if strings.TrimSpace(line) == "" {
				orch.Reset()
				continue
			}
			orch.Submit(search.ParseQuery(line, base))
		}
	}
}

func healthCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the retrieval service",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := searchapi.NewClient(cfg.Search.APIURL, cfg.Search.RequestTimeout, logger.NewNop())
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			type Result struct {
				URL       string             `json:"url"`
				Status    string             `json:"status"`
				Ready     bool               `json:"ready"`
				LoadTimes map[string]float64 `json:"load_times,omitempty"`
				Error     string             `json:"error,omitempty"`
			}
			result := Result{URL: cfg.Search.APIURL, Status: "unreachable"}

			health, err := client.Health(ctx)
			if err == nil {
				result.Status = health.Status
				ready, rerr := client.Ready(ctx)
				if rerr == nil {
					result.Ready = ready.ModelsLoaded
					result.LoadTimes = ready.LoadTimes
				} else {
					err = rerr
				}
			}
			if err != nil {
				result.Error = err.Error()
			}

			if jsonOutput {
				printJSON(result)
			} else {
				fmt.Printf("%s  status=%s ready=%t\n", result.URL, result.Status, result.Ready)
				for model, secs := range result.LoadTimes {
					fmt.Printf("  %s loaded in %.1fs\n", model, secs)
				}
				if result.Error != "" {
					fmt.Fprintf(os.Stderr, "Error: %s\n", result.Error)
				}
			}
			if err != nil {
				os.Exit(1)
			}
			return nil
		},
	}
}

func posterCmd(cfg *config.Config) *cobra.Command {
	var size string
	cmd := &cobra.Command{
		Use:   "poster [path]",
		Short: "Resolve a poster path to an image URL",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			resolver := searchapi.NewPosterResolver(cfg.Search.PosterBaseURL, cfg.Search.PlaceholderPoster)
			url := resolver.URL(path, searchapi.ParsePosterSize(size))
			if jsonOutput {
				printJSON(map[string]string{"url": url})
			} else {
				fmt.Println(url)
			}
		},
	}
	cmd.Flags().StringVar(&size, "size", string(searchapi.PosterW500), "Poster size (w200, w300, w500, original)")
	return cmd
}

func logsCmd(cfg *config.Config) *cobra.Command {
	var (
		level  string
		limit  int
		offset int
		file   string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = cfg.App.LogFilePath
			}
			entries, err := logger.ReadLogFile(file, strings.ToUpper(level), limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(entries)
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s %-5s [%s] %s\n", e.Timestamp, e.Level, e.Module, e.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "Only show this level (debug, info, warn, error)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	cmd.Flags().StringVar(&file, "file", "", "Log file (defaults to LOG_FILE_PATH)")
	return cmd
}

func watchCmd(cfg *config.Config) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Tail search lifecycle events from NATS or Redis",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.NewIsolatedLogger(cfg.App.LogFilePath)
			defer log.Sync()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch source {
			case "nats":
				if cfg.App.NatsURL == "" {
					return fmt.Errorf("NATS_URL is not set")
				}
				sub, err := pktNats.NewSubscriber(cfg.App.NatsURL, log)
				if err != nil {
					return err
				}
				defer sub.Close()
				err = sub.Subscribe(ctx, pktNats.SubjectPrefix+".>", "", func(_ context.Context, e events.Event) error {
					printEvent(e)
					return nil
				})
				if err != nil {
					return err
				}
				<-ctx.Done()
				return nil
			case "redis":
				if cfg.App.RedisURL == "" {
					return fmt.Errorf("REDIS_URL is not set")
				}
				bus, err := redisbus.Connect(ctx, cfg.App.RedisURL, log)
				if err != nil {
					return err
				}
				defer bus.Close()
				return bus.Subscribe(ctx, printEvent)
			}
			return fmt.Errorf("unknown source %q (want nats or redis)", source)
		},
	}
	cmd.Flags().StringVar(&source, "source", "nats", "Event source (nats or redis)")
	return cmd
}

// optionalPublisher fans lifecycle events out to the transports configured
// in the environment. Without any, events are discarded.
func optionalPublisher(cfg *config.Config, log logger.ILogger) (events.Publisher, func()) {
	var sinks events.Fanout
	var closers []func()

	if cfg.App.NatsURL != "" {
		if pub, err := pktNats.NewPublisher(cfg.App.NatsURL, log); err != nil {
			log.Warn("CLI", "NATS unavailable, events not published", map[string]interface{}{"error": err.Error()})
		} else {
			sinks = append(sinks, pub)
			closers = append(closers, pub.Close)
		}
	}
	if cfg.App.RedisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		bus, err := redisbus.Connect(ctx, cfg.App.RedisURL, log)
		cancel()
		if err != nil {
			log.Warn("CLI", "Redis unavailable, events not published", map[string]interface{}{"error": err.Error()})
		} else {
			sinks = append(sinks, bus)
			closers = append(closers, func() { bus.Close() })
		}
	}

	if len(sinks) == 0 {
		return events.Nop, func() {}
	}

	async := events.NewAsync(sinks, 256, log)
	return async, func() {
		async.Close()
		for _, c := range closers {
			c()
		}
	}
}

func printEvent(e events.Event) {
	if jsonOutput {
		data, err := events.Encode(e)
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}
	fmt.Printf("%s  %-16s %s  %v\n", e.Timestamp().Format(time.TimeOnly), e.EventType(), e.SessionID(), e.Payload())
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
