package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/username/finmail/backend/src/config"
	"github.com/username/finmail/backend/src/database"
	"github.com/username/finmail/backend/src/logger"
	"github.com/username/finmail/backend/src/model"
	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/services"
	"github.com/username/finmail/backend/src/utils"
)

type IngestHandler struct {
	ingestionService services.IngestionService
	emailService     services.EmailService
}

func NewIngestHandler(ingestionService services.IngestionService, emailService services.EmailService) *IngestHandler {
	return &IngestHandler{
		ingestionService: ingestionService,
		emailService:     emailService,
	}
}

type ingestMessagePayload struct {
	MessageID  string `json:"message_id"`
	Body       string `json:"body"`
	ReceivedAt string `json:"received_at"`
}

type ingestRequestPayload struct {
	Messages []ingestMessagePayload `json:"messages"`
}

// HandleIngest accepts a batch of notification email bodies, runs the
// extraction pipeline over them and persists whatever could be extracted.
func (h *IngestHandler) HandleIngest(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.Cfg.MaxIngestBodyBytes)

	var payload ingestRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.L.Warn("Failed to decode ingest payload", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Invalid request body or request too large (max %d bytes)", config.Cfg.MaxIngestBodyBytes), http.StatusBadRequest)
		return
	}

	msgs := make([]models.RawMessage, 0, len(payload.Messages))
	for _, m := range payload.Messages {
		receivedAt := time.Now()
		if strings.TrimSpace(m.ReceivedAt) != "" {
			parsed, err := time.Parse(time.RFC3339, m.ReceivedAt)
			if err != nil {
				utils.SendJSONError(w, fmt.Sprintf("invalid received_at %q, expected RFC3339", m.ReceivedAt), http.StatusBadRequest)
				return
			}
			receivedAt = parsed
		}
		msgs = append(msgs, models.RawMessage{
			MessageID:  m.MessageID,
			Body:       m.Body,
			ReceivedAt: receivedAt,
		})
	}

	logger.L.Info("Processing ingest request", "userID", userID, "messages", len(msgs))
	result, err := h.ingestionService.ProcessBatch(userID, msgs)
	if err != nil {
		if errors.Is(err, services.ErrEmptyBatch) {
			utils.SendJSONError(w, "ingest batch contains no messages", http.StatusBadRequest)
		} else if errors.Is(err, services.ErrBatchTooBig) {
			utils.SendJSONError(w, fmt.Sprintf("ingest batch exceeds the maximum of %d messages", config.Cfg.MaxIngestBatchSize), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error processing ingest batch", "userID", userID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the batch. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	h.notifyPendingReview(userID, result)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding JSON response for ingest result", "userID", userID, "error", err)
	}
}

// notifyPendingReview emails the user when a batch produced low-confidence
// extractions that should be checked by hand.
func (h *IngestHandler) notifyPendingReview(userID int64, result *services.IngestResult) {
	pendingReview := 0
	for _, outcome := range result.Outcomes {
		if outcome.NeedsReview && !outcome.Duplicate {
			pendingReview++
		}
	}
	if pendingReview == 0 {
		return
	}

	user, err := model.GetUserByID(database.DB, userID)
	if err != nil {
		logger.L.Warn("Cannot send review digest, user lookup failed", "userID", userID, "error", err)
		return
	}
	if user.Email == "" {
		return
	}

	go func() {
		if err := h.emailService.SendReviewDigestEmail(user.Email, user.Username, pendingReview); err != nil {
			logger.L.Error("Failed to send review digest email", "userID", userID, "error", err)
		}
	}()
}
