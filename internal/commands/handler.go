package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aleister1102/postwatch/internal/config"
	"github.com/aleister1102/postwatch/internal/metrics"
	"github.com/aleister1102/postwatch/internal/models"
	"github.com/aleister1102/postwatch/internal/monitor"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// MonitorAPI is the part of the monitor service the commands call.
type MonitorAPI interface {
	Register(ctx context.Context, in monitor.RegisterInput) (models.MonitorConfig, error)
	Remove(ctx context.Context, tenantID, name string) error
	Update(ctx context.Context, in monitor.UpdateInput) (models.MonitorConfig, error)
	Status(tenantID string) []monitor.MonitorStatus
}

// Request is one decoded slash command invocation.
type Request struct {
	Command   string
	GuildID   string
	ChannelID string
	UserID    string
	IsAdmin   bool
	Strings   map[string]string
	Integers  map[string]int64
}

// Response is the reply shown to the invoking user.
type Response struct {
	Content   string
	Ephemeral bool
}

// Handler executes slash commands against the monitor service.
type Handler struct {
	api     MonitorAPI
	cfg     config.CommandConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewHandler creates a handler limited to cfg.CommandsPerMinute invocations.
func NewHandler(api MonitorAPI, cfg config.CommandConfig, m *metrics.Metrics, logger zerolog.Logger) *Handler {
	perMinute := cfg.CommandsPerMinute
	if perMinute <= 0 {
		perMinute = config.DefaultCommandsPerMinute
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}

	return &Handler{
		api:     api,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		metrics: m,
		logger:  logger.With().Str("component", "CommandHandler").Logger(),
	}
}

// Handle runs one command and returns the reply. Errors are turned into
// user-facing text; only configuration errors carry detail.
func (h *Handler) Handle(ctx context.Context, req Request) Response {
	resp, result := h.handle(ctx, req)
	h.metrics.Command(req.Command, result)
	return resp
}

func (h *Handler) handle(ctx context.Context, req Request) (Response, string) {
	if req.GuildID == "" {
		return Response{Content: "Commands can only be used inside a server.", Ephemeral: true}, "rejected"
	}
	if h.cfg.AdminRequired && !req.IsAdmin {
		return Response{Content: "Only administrators can manage watched pages.", Ephemeral: true}, "forbidden"
	}
	if !h.limiter.Allow() {
		h.logger.Warn().Str("command", req.Command).Str("guild_id", req.GuildID).Msg("Rate limit exceeded for command")
		return Response{Content: "Too many commands right now. Please wait a moment and try again.", Ephemeral: true}, "rate_limited"
	}

	var (
		resp Response
		err  error
	)
	switch req.Command {
	case CommandAdd:
		resp, err = h.add(ctx, req)
	case CommandList:
		resp = h.list(req)
	case CommandRemove:
		resp, err = h.remove(ctx, req)
	case CommandEdit:
		resp, err = h.edit(ctx, req)
	default:
		return Response{Content: "Unknown command.", Ephemeral: true}, "unknown"
	}

	if err != nil {
		return h.errorResponse(req, err), "error"
	}
	return resp, "ok"
}

func (h *Handler) add(ctx context.Context, req Request) (Response, error) {
	minutes := req.Integers[OptionInterval]
	if minutes == 0 {
		minutes = DefaultIntervalMinutes
	}

	cfg, err := h.api.Register(ctx, monitor.RegisterInput{
		TenantID:       req.GuildID,
		Name:           req.Strings[OptionName],
		URL:            req.Strings[OptionURL],
		Destination:    destinationOf(req, req.ChannelID),
		IntervalMillis: minutesToMillis(minutes),
	})
	if err != nil {
		return Response{}, err
	}

	return Response{Content: fmt.Sprintf("Now watching **%s**: %s → %s every %d min.",
		cfg.Name, cfg.URL, mention(cfg.Destination), cfg.IntervalMillis/60_000)}, nil
}

func (h *Handler) list(req Request) Response {
	statuses := h.api.Status(req.GuildID)
	if len(statuses) == 0 {
		return Response{Content: "No pages are being watched in this server.", Ephemeral: true}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Watching %d page(s):\n", len(statuses))
	for _, st := range statuses {
		cfg := st.Config
		fmt.Fprintf(&b, "• **%s** · <%s> → %s · every %d min · %s\n",
			cfg.Name, cfg.URL, mention(cfg.Destination), cfg.IntervalMillis/60_000, st.Job.State)
	}
	return Response{Content: truncateMessage(b.String()), Ephemeral: true}
}

func (h *Handler) remove(ctx context.Context, req Request) (Response, error) {
	name := strings.TrimSpace(req.Strings[OptionName])
	if err := h.api.Remove(ctx, req.GuildID, name); err != nil {
		return Response{}, err
	}
	return Response{Content: fmt.Sprintf("Stopped watching **%s**.", name)}, nil
}

func (h *Handler) edit(ctx context.Context, req Request) (Response, error) {
	in := monitor.UpdateInput{TenantID: req.GuildID, Name: req.Strings[OptionName]}
	if v, ok := req.Strings[OptionURL]; ok {
		in.URL = &v
	}
	if dest := destinationOf(req, ""); dest != "" {
		in.Destination = &dest
	}
	if minutes, ok := req.Integers[OptionInterval]; ok {
		ms := minutesToMillis(minutes)
		in.IntervalMillis = &ms
	}

	cfg, err := h.api.Update(ctx, in)
	if err != nil {
		return Response{}, err
	}
	return Response{Content: fmt.Sprintf("Updated **%s**: %s → %s every %d min.",
		cfg.Name, cfg.URL, mention(cfg.Destination), cfg.IntervalMillis/60_000)}, nil
}

func (h *Handler) errorResponse(req Request, err error) Response {
	name := strings.TrimSpace(req.Strings[OptionName])

	var cfgErr *models.ConfigError
	if !errors.As(err, &cfgErr) {
		h.logger.Error().Err(err).Str("command", req.Command).Str("guild_id", req.GuildID).Msg("Command execution failed")
		return Response{Content: "Something went wrong. Please try again later.", Ephemeral: true}
	}

	var content string
	switch {
	case errors.Is(err, models.ErrDuplicateName):
		content = fmt.Sprintf("A watch named **%s** already exists.", name)
	case errors.Is(err, models.ErrNotFound):
		content = fmt.Sprintf("No watch named **%s**.", name)
	case errors.Is(err, models.ErrInvalidDestination):
		content = "That destination cannot receive notifications. Pick a text channel in this server or a Discord webhook URL."
	case errors.Is(err, models.ErrInvalidInput):
		content = "Invalid input: " + cfgErr.Reason
	default:
		content = cfgErr.Error()
	}
	return Response{Content: content, Ephemeral: true}
}

// destinationOf picks the webhook, then the channel option, then fallback.
func destinationOf(req Request, fallback string) string {
	if v := strings.TrimSpace(req.Strings[OptionWebhook]); v != "" {
		return v
	}
	if v := req.Strings[OptionChannel]; v != "" {
		return v
	}
	return fallback
}

func minutesToMillis(minutes int64) int64 {
	if minutes < MinIntervalMinutes {
		minutes = MinIntervalMinutes
	}
	if minutes > MaxIntervalMinutes {
		minutes = MaxIntervalMinutes
	}
	return minutes * 60_000
}

func mention(destination string) string {
	if strings.HasPrefix(destination, "http") {
		return "webhook"
	}
	return "<#" + destination + ">"
}

func truncateMessage(s string) string {
	const limit = 2000
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
