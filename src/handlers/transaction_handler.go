package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/finmail/backend/src/logger"
	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/services"
	"github.com/username/finmail/backend/src/utils"
)

type TransactionHandler struct {
	ingestionService services.IngestionService
}

func NewTransactionHandler(service services.IngestionService) *TransactionHandler {
	return &TransactionHandler{
		ingestionService: service,
	}
}

// writeWithETag sends data as JSON, honouring If-None-Match so unchanged
// payloads answer 304 without a body.
func writeWithETag(w http.ResponseWriter, r *http.Request, userID int64, data interface{}) {
	currentETag, etagErr := utils.GenerateETag(data)
	if etagErr != nil {
		logger.L.Error("Failed to generate ETag", "userID", userID, "error", etagErr)
	}

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("\"%s\"", currentETag)
		w.Header().Set("ETag", quotedETag)
		clientETag := r.Header.Get("If-None-Match")
		for _, cETag := range strings.Split(clientETag, ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.Error("Error encoding JSON response", "userID", userID, "error", err)
	}
}

// HandleGetTransactions returns all stored transactions for the
// authenticated user, newest first.
func (h *TransactionHandler) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling GetTransactions", "userID", userID)

	transactions, err := h.ingestionService.GetTransactions(userID)
	if err != nil {
		logger.L.Error("Error retrieving transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving transactions for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []models.StoredTransaction{}
	}

	writeWithETag(w, r, userID, transactions)
}

// HandleGetSummary returns per-template, per-currency totals.
func (h *TransactionHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Debug("Handling GetSummary", "userID", userID)

	summary, err := h.ingestionService.GetSummary(userID)
	if err != nil {
		logger.L.Error("Error building transaction summary", "userID", userID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error building summary for userID %d: %v", userID, err), http.StatusInternalServerError)
		return
	}
	if summary == nil {
		summary = []services.TemplateSummary{}
	}

	writeWithETag(w, r, userID, summary)
}

// HandleDeleteAllTransactions removes every stored transaction for the user.
func (h *TransactionHandler) HandleDeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		utils.SendJSONError(w, "authentication required or user ID not found in context", http.StatusUnauthorized)
		return
	}
	logger.L.Info("Handling DeleteAllTransactions", "userID", userID)

	if err := h.ingestionService.DeleteAllTransactions(userID); err != nil {
		logger.L.Error("Error deleting transactions", "userID", userID, "error", err)
		utils.SendJSONError(w, "Error deleting transactions", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
