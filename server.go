package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/middlewares"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/mmdatafocus/rentease_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

// PubSubPushMessage is the envelope Pub/Sub push subscriptions POST to us.
type PubSubPushMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// momoPayment is the provider payload inside the push envelope.
type momoPayment struct {
	TenantId       int             `json:"tenant_id"`
	Amount         decimal.Decimal `json:"amount"`
	ReceiptNumber  string          `json:"receipt_number"`
	SenderName     string          `json:"sender_name"`
	CompletionTime time.Time       `json:"completion_time"`
	CorrelationId  string          `json:"correlation_id"`
}

// momoCallbackHandler receives mobile-money payments pushed from the
// provider integration via Pub/Sub. The period defaults to the calendar
// month of the payment's completion time, so a delayed delivery still
// posts against the right bill.
func momoCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "server.go", "momoCallbackHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}

		// byte slice unmarshalling handles base64 decoding.
		var msg PubSubPushMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(logger, "server.go", "momoCallbackHandler", "Unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}

		var payment momoPayment
		if err := json.Unmarshal(msg.Message.Data, &payment); err != nil {
			config.LogError(logger, "server.go", "momoCallbackHandler", "Unmarshal payment", msg.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}

		// Basic validation to avoid retry loops on poisoned messages.
		if payment.TenantId <= 0 || !payment.Amount.IsPositive() {
			config.LogError(logger, "server.go", "momoCallbackHandler", "Invalid payment (missing required fields)", payment,
				fmt.Errorf("tenant_id and positive amount required"))
			c.Status(http.StatusNoContent)
			return
		}

		completed := payment.CompletionTime
		if completed.IsZero() {
			completed = time.Now()
		}
		month, year := models.CurrentPeriod(completed)

		correlationID := payment.CorrelationId
		if correlationID == "" {
			correlationID = msg.Message.ID
		}
		ctx := appctx.Set(c.Request.Context(), appctx.ContextKeyCorrelationId, correlationID)

		repo := models.NewRepository(config.GetDB())
		_, err = workflow.ReconcilePayment(ctx, repo, logger, workflow.ReconcileInput{
			TenantId:      payment.TenantId,
			Month:         month,
			Year:          year,
			Amount:        payment.Amount,
			Method:        models.PaymentMethodMobileMoney,
			ReceiptNumber: payment.ReceiptNumber,
			SenderName:    payment.SenderName,
			PaymentDate:   completed,
		})
		if err != nil {
			// Unknown tenant or bad period will never succeed on retry: drop.
			if reconcileErrorStatus(err) != http.StatusInternalServerError &&
				!errors.Is(err, models.ErrConcurrentUpdate) {
				logger.WithFields(logrus.Fields{
					"field":          "momoCallbackHandler",
					"tenant_id":      payment.TenantId,
					"message_id":     msg.Message.ID,
					"correlation_id": correlationID,
				}).Error("momo payment dropped: " + err.Error())
				c.Status(http.StatusNoContent)
				return
			}
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			logger.WithFields(logrus.Fields{
				"field":          "momoCallbackHandler",
				"tenant_id":      payment.TenantId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationID,
			}).Error("momo payment processing failed: " + err.Error())
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// internalOpsGuard protects ops endpoints hit by schedulers and operators,
// not browser sessions. Token comes from INTERNAL_OPS_TOKEN.
func internalOpsGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		expected := strings.TrimSpace(os.Getenv("INTERNAL_OPS_TOKEN"))
		if expected == "" || c.GetHeader("X-Internal-Token") != expected {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

// customErrorLogger logs only requests that accumulated errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until the DB is ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.SessionMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	r.POST("/api/auth/register", registerHandler())
	r.POST("/api/auth/login", loginHandler())
	r.POST("/api/auth/logout", logoutHandler())
	r.POST("/api/auth/request-reset", requestResetHandler())
	r.POST("/api/auth/reset-password", resetPasswordHandler())

	authed := r.Group("/api", middlewares.RequireAuth())
	authed.POST("/payments/cash", cashPaymentHandler())
	authed.POST("/statements/import", statementImportHandler())
	authed.GET("/statements/review", statementReviewListHandler())
	authed.POST("/statements/review/:id/approve", approveMatchHandler())
	authed.POST("/statements/review/:id/reject", rejectMatchHandler())
	authed.POST("/statements/review/:id/manual-match", manualMatchHandler())
	authed.GET("/tenants", listTenantsHandler())
	authed.GET("/tenants/:id/cycle", tenantCycleHandler())

	// Provider integration pushes mobile-money payments here via Pub/Sub.
	r.POST("/pubsub/momo", momoCallbackHandler())

	// Ops tooling: scheduler-triggered sweep and outbox replay.
	internal := r.Group("/internal/ops", internalOpsGuard())
	internal.POST("/cycle-sweep", cycleSweepHandler())
	internal.POST("/outbox/replay", outboxReplayHandler())

	r.NoRoute(customNotFoundHandler)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable(db)
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Start outbox dispatcher (publishes AFTER commit).
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	go workflow.NewOutboxDispatcher(db, logger).Run(dispatcherCtx)

	// Periodic cycle sweep inside the service; an external scheduler hitting
	// /internal/ops/cycle-sweep is also fine, the redis lock keeps the two
	// from overlapping.
	sweepInterval := utils.GetSweepInterval()
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-dispatcherCtx.Done():
				return
			case <-ticker.C:
				repo := models.NewRepository(config.GetDB())
				if _, err := workflow.RunRentCycleSweep(dispatcherCtx, repo, logger, time.Now()); err != nil {
					config.LogError(logger, "server.go", "main", "RunRentCycleSweep", nil, err)
				}
			}
		}
	}()

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	// Block until shutdown or server error.
	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers first so they don't pick up new work while
	// requests drain.
	cancelDispatcher()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
