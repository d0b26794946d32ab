package twilio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/transports"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type Config struct {
	ServerAddr        string `mapstructure:"server_addr"`
	PublicURL         string `mapstructure:"public_url"`
	AccountSID        string `mapstructure:"account_sid"`
	AuthToken         string `mapstructure:"auth_token"`
	FromNumber        string `mapstructure:"from_number"`
	AgentID           string `mapstructure:"agent_id"`
	MessagePath       string `mapstructure:"message_path"`
	ValidateSignature bool   `mapstructure:"validate_signature"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.MessagePath == "" {
		c.MessagePath = "/whatsapp/message"
	}
	return c
}

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

// Transport receives WhatsApp messages over Twilio's inbound webhook and
// sends replies through the REST messages API. The sender's WhatsApp
// address doubles as the session ID.
type Transport struct {
	cfg      Config
	server   *http.Server
	recvCh   chan transports.InboundMessage
	client   messageCreator
	draining atomic.Bool
}

func New(cfg Config) *Transport {
	return &Transport{
		cfg:    cfg.withDefaults(),
		recvCh: make(chan transports.InboundMessage, 256),
	}
}

func (t *Transport) Name() string { return "twilio_whatsapp" }

func (t *Transport) Recv() <-chan transports.InboundMessage { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{"webhook_url": t.webhookURL()}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.cfg.MessagePath, t.handleMessage)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("twilio_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	close(t.recvCh)
	return nil
}

func (t *Transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if t.cfg.ValidateSignature {
		if err := t.checkSignature(r); err != nil {
			slog.Warn("twilio_webhook_rejected", "remote", r.RemoteAddr, "error", err)
			w.WriteHeader(http.StatusForbidden)
			return
		}
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	media := r.PostFormValue("MediaUrl0")
	if from == "" || (body == "" && media == "") {
		w.WriteHeader(http.StatusOK)
		return
	}
	msg := transports.InboundMessage{
		SessionID:  from,
		AgentID:    t.cfg.AgentID,
		From:       from,
		Text:       body,
		ImageRef:   media,
		Channel:    "whatsapp",
		ReceivedAt: time.Now(),
	}
	nonBlockingSend(t.recvCh, msg)
	// Replies go out through the REST API, not the webhook response.
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write([]byte("<Response></Response>"))
}

func (t *Transport) Send(out transports.OutboundMessage) error {
	to := out.To
	if to == "" {
		to = out.SessionID
	}
	if to == "" || out.Text == "" {
		return errorsx.New(errorsx.ReasonTransportSend, "missing recipient or text")
	}
	client := t.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: t.cfg.AccountSID,
			Password: t.cfg.AuthToken,
		})
		client = rest.Api
		t.client = client
	}
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.cfg.FromNumber)
	params.SetBody(out.Text)
	if _, err := client.CreateMessage(params); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	return nil
}

func (t *Transport) checkSignature(r *http.Request) error {
	signature := r.Header.Get("X-Twilio-Signature")
	if signature == "" {
		return errorsx.New(errorsx.ReasonTransportInvalidSignature, "missing X-Twilio-Signature header")
	}
	if t.cfg.AuthToken == "" {
		return errorsx.New(errorsx.ReasonTransportInvalidSignature, "auth token not configured")
	}
	params := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	validator := twilioclient.NewRequestValidator(t.cfg.AuthToken)
	if !validator.Validate(t.requestURL(r), params, signature) {
		return errorsx.New(errorsx.ReasonTransportInvalidSignature, "signature mismatch")
	}
	return nil
}

func (t *Transport) requestURL(r *http.Request) string {
	if t.cfg.PublicURL != "" {
		base := strings.TrimRight(t.cfg.PublicURL, "/")
		return base + r.URL.RequestURI()
	}
	scheme := r.URL.Scheme
	if scheme == "" {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		} else {
			scheme = "https"
		}
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (t *Transport) webhookURL() string {
	if t.cfg.PublicURL != "" {
		return strings.TrimRight(t.cfg.PublicURL, "/") + t.cfg.MessagePath
	}
	addr := t.cfg.ServerAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + t.cfg.MessagePath
}

func nonBlockingSend(ch chan transports.InboundMessage, msg transports.InboundMessage) {
	select {
	case ch <- msg:
	default:
		slog.Warn("twilio_recv_dropped", "session_id", msg.SessionID)
	}
}
