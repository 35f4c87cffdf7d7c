package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/rentease_backend/appctx"
	"github.com/mmdatafocus/rentease_backend/config"
	"github.com/mmdatafocus/rentease_backend/middlewares"
	"github.com/mmdatafocus/rentease_backend/models"
	"github.com/mmdatafocus/rentease_backend/utils"
	"github.com/mmdatafocus/rentease_backend/workflow"
	"github.com/shopspring/decimal"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

func registerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		if req.Phone != "" {
			if err := utils.ValidatePhoneNumber(req.Phone); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phone number"})
				return
			}
			req.Phone = utils.NormalizePhoneNumber(req.Phone)
		}
		user := &models.User{
			Email:     req.Email,
			Role:      models.UserRoleLandlord,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
		}
		if err := user.SetPassword(req.Password); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := models.CreateUser(c.Request.Context(), config.GetDB(), user); err != nil {
			if errors.Is(err, models.ErrEmailTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create user"})
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.FindUserByEmail(c.Request.Context(), config.GetDB(), req.Email)
		if err != nil || !user.CheckPassword(req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		session := middlewares.SessionData{
			UserId: user.ID,
			Email:  user.Email,
			Role:   string(user.Role),
		}
		if user.Role == models.UserRoleLandlord {
			session.LandlordId = user.ID
		}
		token, err := middlewares.StoreSession(session, 24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create session"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}

type requestResetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// requestResetHandler rotates the account's reset token. The token is
// returned in the response; delivering it to the account holder happens
// outside this service.
func requestResetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req requestResetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.FindUserByEmail(c.Request.Context(), config.GetDB(), req.Email)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no account for this email"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process reset request"})
			return
		}
		token, err := user.GenerateResetToken(time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate reset token"})
			return
		}
		if err := models.SaveUser(c.Request.Context(), config.GetDB(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store reset token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"reset_token": token,
			"expires_at":  user.ResetTokenExpires,
		})
	}
}

type resetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

func resetPasswordHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req resetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		user, err := models.FindUserByResetToken(c.Request.Context(), config.GetDB(), req.Token)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusBadRequest, gin.H{"error": models.ErrResetTokenInvalid.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not process reset"})
			return
		}
		if err := user.ConsumeResetToken(req.Token, req.NewPassword, time.Now()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := models.SaveUser(c.Request.Context(), config.GetDB(), user); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update password"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeyToken); ok {
			_ = middlewares.ClearSession(token)
		}
		c.Status(http.StatusNoContent)
	}
}

type cashPaymentRequest struct {
	TenantId    int             `json:"tenant_id" binding:"required,gt=0"`
	Month       int             `json:"month" binding:"required,min=1,max=12"`
	Year        int             `json:"year" binding:"required,min=2000,max=2100"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Notes       string          `json:"notes"`
}

func cashPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cashPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		in := workflow.ReconcileInput{
			TenantId: req.TenantId,
			Month:    req.Month,
			Year:     req.Year,
			Amount:   req.Amount,
			Method:   models.PaymentMethodCash,
			Notes:    req.Notes,
		}
		if req.PaymentDate != nil {
			in.PaymentDate = *req.PaymentDate
		}
		repo := models.NewRepository(config.GetDB())
		result, err := workflow.ReconcilePayment(c.Request.Context(), repo, config.GetLogger(), in)
		if err != nil {
			c.JSON(reconcileErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"bill":                    result.Bill,
			"transaction":             result.Transaction,
			"duplicate_bill_detected": result.DuplicateBillDetected,
			"cycle_updated":           result.CycleUpdated,
			"cycle_state":             result.CycleState,
		})
	}
}

type statementImportRequest struct {
	StatementText string `json:"statement_text" binding:"required"`
}

func statementImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statementImportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		landlordId, _ := appctx.GetInt(c.Request.Context(), appctx.ContextKeyLandlordId)
		repo := models.NewRepository(config.GetDB())
		summary, err := workflow.ImportStatement(c.Request.Context(), repo, config.GetLogger(), req.StatementText, landlordId)
		if err != nil {
			if errors.Is(err, utils.ErrNotAStatement) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func statementReviewListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		importId := c.Query("import_id")
		review := models.ReviewStatus(c.Query("status"))
		repo := models.NewRepository(config.GetDB())
		results, err := repo.ListMatchResults(c.Request.Context(), importId, review)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		items, err := models.ReviewQueue(results)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": items})
	}
}

type reviewActionRequest struct {
	Notes string `json:"notes"`
}

func approveMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		matchId, ok := pathId(c)
		if !ok {
			return
		}
		var req reviewActionRequest
		_ = c.ShouldBindJSON(&req)
		repo := models.NewRepository(config.GetDB())
		result, err := workflow.ApproveMatch(c.Request.Context(), repo, config.GetLogger(), matchId, req.Notes)
		if err != nil {
			c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"bill":        result.Bill,
			"transaction": result.Transaction,
		})
	}
}

func rejectMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		matchId, ok := pathId(c)
		if !ok {
			return
		}
		var req reviewActionRequest
		_ = c.ShouldBindJSON(&req)
		repo := models.NewRepository(config.GetDB())
		if err := workflow.RejectMatch(c.Request.Context(), repo, matchId, req.Notes); err != nil {
			c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

type manualMatchRequest struct {
	TenantId int `json:"tenant_id" binding:"required,gt=0"`
}

func manualMatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		matchId, ok := pathId(c)
		if !ok {
			return
		}
		var req manualMatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		repo := models.NewRepository(config.GetDB())
		if err := workflow.ManualMatch(c.Request.Context(), repo, matchId, req.TenantId); err != nil {
			c.JSON(reviewErrorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func listTenantsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		landlordId, _ := appctx.GetInt(c.Request.Context(), appctx.ContextKeyLandlordId)
		repo := models.NewRepository(config.GetDB())
		tenants, err := repo.ListActiveTenants(c.Request.Context(), landlordId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenants": tenants})
	}
}

// tenantCycleHandler serves the derived rent-cycle view, redis snapshot
// first, recomputing from the ledger on a miss.
func tenantCycleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantId, ok := pathId(c)
		if !ok {
			return
		}

		var cached models.RentCycleState
		if found, err := utils.GetCycleSnapshot(tenantId, &cached); err == nil && found {
			c.JSON(http.StatusOK, cached)
			return
		}

		repo := models.NewRepository(config.GetDB())
		tenant, err := repo.GetTenant(c.Request.Context(), tenantId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": utils.ErrTenantNotFound.Error()})
			return
		}
		ledger, err := repo.TenantLedger(c.Request.Context(), tenantId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		state := models.CalculateRentCycle(tenant.CycleInput(ledger.LastPaymentDate, ledger.TotalPaid, time.Now()))
		_ = utils.StoreCycleSnapshot(tenantId, state)
		c.JSON(http.StatusOK, state)
	}
}

func cycleSweepHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		repo := models.NewRepository(config.GetDB())
		summary, err := workflow.RunRentCycleSweep(c.Request.Context(), repo, config.GetLogger(), time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

type outboxReplayRequest struct {
	RecordId int `json:"record_id" binding:"required,gt=0"`
}

// outboxReplayHandler requeues a DEAD or FAILED outbox row for another
// publish attempt.
func outboxReplayHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req outboxReplayRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		now := time.Now().UTC()
		err := config.GetDB().WithContext(c.Request.Context()).
			Model(&models.OutboxRecord{}).
			Where("id = ?", req.RecordId).
			Updates(map[string]interface{}{
				"publish_status":     models.OutboxPublishStatusFailed,
				"next_attempt_at":    &now,
				"locked_at":          nil,
				"locked_by":          nil,
				"last_publish_error": nil,
			}).Error
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"record_id":       req.RecordId,
			"publish_status":  models.OutboxPublishStatusFailed,
			"next_attempt_at": now.Format(time.RFC3339Nano),
		})
	}
}

func pathId(c *gin.Context) (int, bool) {
	var uri struct {
		Id int `uri:"id" binding:"required,gt=0"`
	}
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uri.Id, true
}

func reconcileErrorStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrTenantNotFound), errors.Is(err, utils.ErrPropertyNotFound):
		return http.StatusNotFound
	case errors.Is(err, utils.ErrInvalidAmount),
		errors.Is(err, utils.ErrInvalidPeriod),
		errors.Is(err, utils.ErrNoPropertyAssigned):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrConcurrentUpdate):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func reviewErrorStatus(err error) int {
	switch {
	case errors.Is(err, workflow.ErrMatchAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrNoTenantMatched):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrorRecordNotFound), errors.Is(err, utils.ErrTenantNotFound):
		return http.StatusNotFound
	default:
		return reconcileErrorStatus(err)
	}
}
