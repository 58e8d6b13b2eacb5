package fetcher

import (
	"context"
	"net/http"

	"github.com/aleister1102/postwatch/internal/common/errorwrapper"
	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/httpclient"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog"
)

// StaticFetcher performs a plain GET without running page scripts.
type StaticFetcher struct {
	cfg       config.FetchConfig
	transport http.RoundTripper
	logger    zerolog.Logger
}

// NewStaticFetcher creates a static fetcher sharing one HTTP/2 capable transport.
func NewStaticFetcher(cfg config.FetchConfig, logger zerolog.Logger) *StaticFetcher {
	logger = logger.With().Str("component", "StaticFetcher").Logger()

	httpCfg := httpclient.DefaultHTTPClientConfig()
	httpCfg.InsecureSkipVerify = cfg.InsecureSkipTLSVerify
	httpCfg.EnableHTTP2 = cfg.EnableHTTP2

	return &StaticFetcher{
		cfg:       cfg,
		transport: httpclient.NewTransport(httpCfg, logger),
		logger:    logger,
	}
}

// Name returns the phase name.
func (f *StaticFetcher) Name() string { return "static" }

// Fetch GETs the page. Non-2xx responses are reported as *errorwrapper.HTTPError.
func (f *StaticFetcher) Fetch(ctx context.Context, url string) (*RawContent, error) {
	collector := f.newCollector(ctx)

	var (
		raw     *RawContent
		failure error
	)
	collector.OnResponse(func(r *colly.Response) {
		raw = &RawContent{
			Body:     r.Body,
			FinalURL: r.Request.URL.String(),
			Phase:    f.Name(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		// colly reports every status from 203 up as an error
		if r != nil && r.StatusCode >= 203 {
			failure = errorwrapper.NewHTTPErrorWithURL(r.StatusCode, http.StatusText(r.StatusCode), url)
			return
		}
		failure = errorwrapper.NewNetworkError(url, "static fetch failed", err)
	})

	err := collector.Visit(url)
	if failure != nil {
		return nil, failure
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errorwrapper.NewNetworkError(url, "static fetch failed", err)
	}
	if raw == nil {
		return nil, errorwrapper.NewNetworkError(url, "no response received", nil)
	}

	f.logger.Debug().Str("url", url).Int("bytes", len(raw.Body)).Msg("Static fetch completed")
	return raw, nil
}

func (f *StaticFetcher) newCollector(ctx context.Context) *colly.Collector {
	opts := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
		colly.StdlibContext(ctx),
	}
	if f.cfg.UserAgent != "" {
		opts = append(opts, colly.UserAgent(f.cfg.UserAgent))
	}
	if f.cfg.MaxContentSizeMB > 0 {
		opts = append(opts, colly.MaxBodySize(f.cfg.MaxContentSizeMB*1024*1024))
	}

	collector := colly.NewCollector(opts...)
	collector.SetRequestTimeout(f.cfg.StaticTimeout())
	collector.WithTransport(f.transport)
	return collector
}
