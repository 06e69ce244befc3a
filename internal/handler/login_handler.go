package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"authgate/internal/auth"
	"authgate/internal/events"
	"authgate/internal/limiter"
	"authgate/internal/util"
)

const tooManyAttemptsMessage = "too many attempts, please try again later"

// LoginHandler runs the request pipeline around the authentication handler:
// gate check before, outcome recording after. The gate and recorder never
// touch the authenticator, and the authenticator never sees throttle state.
type LoginHandler struct {
	gate          *limiter.Gate
	recorder      *limiter.Recorder
	authenticator auth.Authenticator
	publisher     events.Publisher
	strategy      limiter.IdentityStrategy
	maxFailures   int
	authTimeout   time.Duration
	logger        *zap.Logger
}

type LoginHandlerConfig struct {
	Strategy    limiter.IdentityStrategy
	MaxFailures int
	AuthTimeout time.Duration
}

func NewLoginHandler(
	gate *limiter.Gate,
	recorder *limiter.Recorder,
	authenticator auth.Authenticator,
	publisher events.Publisher,
	cfg LoginHandlerConfig,
	logger *zap.Logger,
) *LoginHandler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &LoginHandler{
		gate:          gate,
		recorder:      recorder,
		authenticator: authenticator,
		publisher:     publisher,
		strategy:      cfg.Strategy,
		maxFailures:   cfg.MaxFailures,
		authTimeout:   cfg.AuthTimeout,
		logger:        logger,
	}
}

// Response is the standard API envelope.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// RegisterRoutes mounts the login route.
func (h *LoginHandler) RegisterRoutes(router chi.Router) {
	router.Post("/login", h.Login)
}

// Login handles one authentication attempt.
// @Summary Authenticate a user
// @Description Verify credentials and issue a session, throttling repeated failures per client
// @Tags auth
// @Accept json
// @Produce json
// @Param request body auth.Credentials true "Login credentials"
// @Success 200 {object} Response
// @Failure 400 {object} Response
// @Failure 401 {object} Response
// @Failure 429 {object} Response
// @Failure 503 {object} Response
// @Router /login [post]
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var creds auth.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
		})
		return
	}
	if strings.TrimSpace(creds.Username) == "" || creds.Password == "" {
		h.respondWithJSON(w, http.StatusBadRequest, Response{
			Success: false,
			Error:   "username and password are required",
		})
		return
	}

	ip := clientIP(r)
	identity := h.strategy.Identity(ip, util.SanitizeUsername(creds.Username))

	decision := h.gate.Check(r.Context(), identity)
	if !decision.Allowed {
		h.rejectThrottled(w, r, identity, ip, decision)
		return
	}

	authCtx, cancel := context.WithTimeout(r.Context(), h.authTimeout)
	session, err := h.authenticator.Authenticate(authCtx, creds)
	cancel()

	outcome := classifyOutcome(err)
	failures := h.recorder.Observe(r.Context(), identity, outcome)

	switch outcome {
	case limiter.OutcomeSuccess:
		h.respondWithJSON(w, http.StatusOK, Response{
			Success: true,
			Data:    session,
			Message: "login successful",
		})
		h.logger.Info("login succeeded",
			util.String("ip", ip),
			util.Duration("duration", time.Since(startTime)),
		)

	case limiter.OutcomeFailure:
		if failures == h.maxFailures {
			h.publisher.Publish(r.Context(), events.SecurityEvent{
				EventType: events.EventLockout,
				Identity:  string(identity),
				IPAddress: ip,
				Failures:  failures,
			})
			h.logger.Warn("identity locked out",
				util.String("ip", ip),
				util.Int("failures", failures),
			)
		}
		// Same wording regardless of how close the client is to the
		// threshold; only the throttled response differs.
		h.respondWithJSON(w, http.StatusUnauthorized, Response{
			Success: false,
			Error:   "invalid username or password",
		})
		h.logger.Info("login failed",
			util.String("ip", ip),
			util.Int("failures", failures),
			util.Duration("duration", time.Since(startTime)),
		)

	default:
		h.respondWithJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "authentication service unavailable",
		})
		h.logger.Error("login outcome indeterminate",
			util.String("ip", ip),
			util.ErrorField(err),
			util.Duration("duration", time.Since(startTime)),
		)
	}
}

func (h *LoginHandler) rejectThrottled(w http.ResponseWriter, r *http.Request, identity limiter.Identity, ip string, decision limiter.Decision) {
	if decision.RetryAfter > 0 {
		seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	h.respondWithJSON(w, http.StatusTooManyRequests, Response{
		Success: false,
		Error:   tooManyAttemptsMessage,
	})

	h.publisher.Publish(r.Context(), events.SecurityEvent{
		EventType:  events.EventRejected,
		Identity:   string(identity),
		IPAddress:  ip,
		Failures:   decision.Failures,
		RetryAfter: decision.RetryAfter.String(),
	})
	h.logger.Info("login attempt throttled",
		util.String("ip", ip),
		util.Int("failures", decision.Failures),
		util.Duration("retry_after", decision.RetryAfter),
	)
}

// classifyOutcome maps the authenticator result onto the recorder's
// tri-state: only a definite credential rejection counts as a failure.
func classifyOutcome(err error) limiter.Outcome {
	switch {
	case err == nil:
		return limiter.OutcomeSuccess
	case errors.Is(err, auth.ErrInvalidCredentials):
		return limiter.OutcomeFailure
	default:
		return limiter.OutcomeIndeterminate
	}
}

// clientIP prefers proxy-set headers and falls back to the socket address.
func clientIP(r *http.Request) string {
	if forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func (h *LoginHandler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}
