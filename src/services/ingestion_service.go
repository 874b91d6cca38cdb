package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/finmail/backend/src/config"
	"github.com/username/finmail/backend/src/database"
	"github.com/username/finmail/backend/src/logger"
	"github.com/username/finmail/backend/src/models"
	"github.com/username/finmail/backend/src/parsers"
	"github.com/username/finmail/backend/src/processors"
	"github.com/username/finmail/backend/src/security/validation"
	"github.com/username/finmail/backend/src/utils"
)

const (
	ckTransactions    = "res_transactions_user_%d"
	ckTemplateSummary = "agg_template_summary_user_%d"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type ingestionServiceImpl struct {
	merger        *processors.ResultMerger
	deduplicator  *processors.Deduplicator
	dispatchOrder []models.Template
	reportCache   *cache.Cache
}

func NewIngestionService(
	merger *processors.ResultMerger,
	deduplicator *processors.Deduplicator,
	reportCache *cache.Cache,
) IngestionService {
	return &ingestionServiceImpl{
		merger:        merger,
		deduplicator:  deduplicator,
		dispatchOrder: parsers.DefaultDispatchOrder(),
		reportCache:   reportCache,
	}
}

// extract runs the full per-message pipeline: template dispatch, permissive
// fallback pass, merge.
func (s *ingestionServiceImpl) extract(msg models.RawMessage) models.MergeResult {
	body := validation.StripUnprintable(msg.Body)

	primary := s.primaryResult(body, msg.ReceivedAt)

	fields := parsers.ExtractFallbackFields(body)
	fallback := &models.ExtractionResult{Success: false, Failure: "fallback_unavailable"}
	if tx := parsers.BuildFallbackTransaction(fields, msg.ReceivedAt); tx != nil {
		fallback = &models.ExtractionResult{Success: true, Transaction: tx}
	}

	return s.merger.Merge(primary, fallback)
}

// primaryResult tries the template parsers in dispatch order and keeps the
// highest-confidence success. A parser failing with amount_not_found or
// datetime_not_found just means its template does not describe this email.
func (s *ingestionServiceImpl) primaryResult(body string, receivedAt time.Time) *models.ExtractionResult {
	var best *models.NormalizedTransaction
	lastFailure := "no_template_attempted"
	for _, template := range s.dispatchOrder {
		parser, err := parsers.GetParser(template)
		if err != nil {
			logger.L.Error("No parser for dispatch-order template", "template", template, "error", err)
			continue
		}
		tx, err := parser.Parse(body, receivedAt)
		if err != nil {
			logger.L.Debug("Template did not match message", "template", template, "reason", err.Error())
			lastFailure = err.Error()
			continue
		}
		if best == nil || tx.Confidence > best.Confidence {
			best = tx
		}
	}
	if best == nil {
		return &models.ExtractionResult{Success: false, Failure: lastFailure}
	}
	return &models.ExtractionResult{Success: true, Transaction: best}
}

func (s *ingestionServiceImpl) ProcessMessage(userID int64, msg models.RawMessage) (*MessageOutcome, error) {
	result, err := s.ProcessBatch(userID, []models.RawMessage{msg})
	if err != nil {
		return nil, err
	}
	return &result.Outcomes[0], nil
}

func (s *ingestionServiceImpl) ProcessBatch(userID int64, msgs []models.RawMessage) (*IngestResult, error) {
	overallStartTime := time.Now()
	if len(msgs) == 0 {
		return nil, ErrEmptyBatch
	}
	if config.Cfg != nil && config.Cfg.MaxIngestBatchSize > 0 && len(msgs) > config.Cfg.MaxIngestBatchSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrBatchTooBig, len(msgs), config.Cfg.MaxIngestBatchSize)
	}
	logger.L.Info("ProcessBatch START", "userID", userID, "messages", len(msgs))

	result := &IngestResult{Received: len(msgs)}
	var stored []models.StoredTransaction
	reviewThreshold := 0.75
	if config.Cfg != nil {
		reviewThreshold = config.Cfg.ReviewConfidenceThreshold
	}

	for _, msg := range msgs {
		outcome := MessageOutcome{MessageID: msg.MessageID}
		merged := s.extract(msg)
		if merged.Transaction == nil {
			outcome.Error = merged.Reason
			result.Failed++
			result.Outcomes = append(result.Outcomes, outcome)
			continue
		}
		outcome.Extracted = true
		outcome.Winner = merged.Winner
		outcome.Transaction = merged.Transaction
		outcome.NeedsReview = merged.Transaction.Confidence < reviewThreshold
		result.Extracted++
		result.Outcomes = append(result.Outcomes, outcome)
		stored = append(stored, toStored(userID, msg.MessageID, merged.Transaction))
	}

	// The deduplicator needs the complete batch at once; first seen wins.
	unique := s.deduplicator.DedupeStored(stored)
	survivors := make(map[string]struct{}, len(unique))
	for _, tx := range unique {
		survivors[tx.HashID] = struct{}{}
	}
	markBatchDuplicates(result.Outcomes, stored, survivors)

	inserted, dbDuplicates, err := s.insertTransactions(userID, unique)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	// Rows rejected by UNIQUE(user_id, hash_id) were persisted by an
	// earlier run; those surface in the batch-level count only.
	result.Duplicate = (len(stored) - len(unique)) + dbDuplicates

	s.InvalidateUserCache(userID)
	logger.L.Info("ProcessBatch END", "userID", userID,
		"extracted", result.Extracted, "inserted", result.Inserted,
		"duplicate", result.Duplicate, "failed", result.Failed,
		"duration", time.Since(overallStartTime))
	return result, nil
}

func (s *ingestionServiceImpl) insertTransactions(userID int64, txs []models.StoredTransaction) (inserted, duplicates int, err error) {
	if len(txs) == 0 {
		return 0, 0, nil
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`INSERT INTO transactions (user_id, message_id, source, template, date, amount_value, currency, exchange_rate_used, channel, merchant, location, card_last4, account_ref, operation_id, notes, details, confidence, hash_id) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, 0, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, tx := range txs {
		_, execErr := stmt.Exec(userID, tx.MessageID, tx.Source, tx.Template, tx.Date,
			tx.AmountValue, tx.Currency, tx.ExchangeRateUsed, tx.Channel, tx.Merchant,
			tx.Location, tx.CardLast4, tx.AccountRef, tx.OperationID, tx.Notes,
			tx.DetailsJSON, tx.Confidence, tx.HashID)
		if execErr != nil {
			if strings.Contains(strings.ToLower(execErr.Error()), "unique constraint failed") {
				logger.L.Debug("Skipping duplicate transaction on ingest", "userID", userID, "hash_id", tx.HashID)
				duplicates++
				continue
			}
			return 0, 0, fmt.Errorf("error inserting transaction (messageID: %s): %w", tx.MessageID, execErr)
		}
		inserted++
	}

	if err := dbTx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("error committing transactions: %w", err)
	}
	return inserted, duplicates, nil
}

// InvalidateUserCache clears all cached data for a user, forcing a complete rebuild on the next request.
func (s *ingestionServiceImpl) InvalidateUserCache(userID int64) {
	keysToDelete := []string{
		fmt.Sprintf(ckTransactions, userID),
		fmt.Sprintf(ckTemplateSummary, userID),
	}
	for _, key := range keysToDelete {
		s.reportCache.Delete(key)
	}
	logger.L.Info("Invalidated all caches for user", "userID", userID)
}

func (s *ingestionServiceImpl) GetTransactions(userID int64) ([]models.StoredTransaction, error) {
	cacheKey := fmt.Sprintf(ckTransactions, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		logger.L.Debug("Cache hit for GetTransactions", "userID", userID)
		return cached.([]models.StoredTransaction), nil
	}

	txs, err := fetchUserTransactions(userID)
	if err != nil {
		return nil, err
	}
	// Collapse anything stored twice across earlier ingest runs, most
	// recent first.
	txs = s.deduplicator.DedupeStored(txs)

	s.reportCache.Set(cacheKey, txs, DefaultCacheExpiration)
	return txs, nil
}

func (s *ingestionServiceImpl) GetSummary(userID int64) ([]TemplateSummary, error) {
	cacheKey := fmt.Sprintf(ckTemplateSummary, userID)
	if cached, found := s.reportCache.Get(cacheKey); found {
		return cached.([]TemplateSummary), nil
	}

	txs, err := s.GetTransactions(userID)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]*TemplateSummary)
	var order []string
	for _, tx := range txs {
		key := tx.Template + "|" + tx.Currency
		entry, ok := totals[key]
		if !ok {
			entry = &TemplateSummary{Template: tx.Template, Currency: tx.Currency}
			totals[key] = entry
			order = append(order, key)
		}
		entry.Count++
		entry.Total += tx.AmountValue
	}

	summary := make([]TemplateSummary, 0, len(order))
	for _, key := range order {
		entry := totals[key]
		entry.Total = utils.RoundFloat(entry.Total, 2)
		summary = append(summary, *entry)
	}
	s.reportCache.Set(cacheKey, summary, DefaultCacheExpiration)
	return summary, nil
}

func (s *ingestionServiceImpl) DeleteAllTransactions(userID int64) error {
	_, err := database.DB.Exec(`DELETE FROM transactions WHERE user_id = ?`, userID)
	if err != nil {
		return fmt.Errorf("error deleting transactions for userID %d: %w", userID, err)
	}
	s.InvalidateUserCache(userID)
	return nil
}

func fetchUserTransactions(userID int64) ([]models.StoredTransaction, error) {
	logger.L.Debug("Fetching transactions from DB", "userID", userID)
	rows, err := database.DB.Query(`SELECT id, user_id, message_id, source, template, date, amount_value, currency, exchange_rate_used, channel, merchant, location, card_last4, account_ref, operation_id, notes, details, confidence, hash_id FROM transactions WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions for userID %d: %w", userID, err)
	}
	defer rows.Close()
	var transactions []models.StoredTransaction
	for rows.Next() {
		var tx models.StoredTransaction
		scanErr := rows.Scan(&tx.ID, &tx.UserID, &tx.MessageID, &tx.Source, &tx.Template,
			&tx.Date, &tx.AmountValue, &tx.Currency, &tx.ExchangeRateUsed, &tx.Channel,
			&tx.Merchant, &tx.Location, &tx.CardLast4, &tx.AccountRef, &tx.OperationID,
			&tx.Notes, &tx.DetailsJSON, &tx.Confidence, &tx.HashID)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning transaction row for userID %d: %w", userID, scanErr)
		}
		transactions = append(transactions, tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transaction rows for userID %d: %w", userID, err)
	}
	logger.L.Info("DB fetch complete.", "userID", userID, "transactionCount", len(transactions))
	return transactions, nil
}

// toStored maps the pipeline output to the persisted shape and stamps the
// idempotency hash derived from the dedup key.
func toStored(userID int64, messageID string, tx *models.NormalizedTransaction) models.StoredTransaction {
	stored := models.StoredTransaction{
		UserID:           userID,
		MessageID:        messageID,
		Source:           tx.Source,
		Template:         string(tx.Template),
		Date:             tx.OccurredAt.Format(time.RFC3339),
		AmountValue:      parseAmountValue(tx.Amount.Value),
		Currency:         string(tx.Amount.Currency),
		ExchangeRateUsed: tx.ExchangeRate.Used,
		Channel:          tx.Channel,
		Merchant:         tx.Merchant,
		Location:         tx.Location,
		CardLast4:        tx.CardLast4,
		AccountRef:       tx.AccountRef,
		OperationID:      tx.OperationID,
		Notes:            strings.Join(tx.Notes, "; "),
		Confidence:       tx.Confidence,
	}
	if len(tx.Details) > 0 {
		if detailsJSON, err := json.Marshal(tx.Details); err == nil {
			stored.DetailsJSON = string(detailsJSON)
		}
	}
	stored.HashID = generateHash(&stored)
	return stored
}

// generateHash creates a unique hash for the transaction from its dedup key.
func generateHash(tx *models.StoredTransaction) string {
	hash := sha256.Sum256([]byte(processors.StoredKey(tx)))
	return hex.EncodeToString(hash[:])
}

func parseAmountValue(value string) float64 {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return v
}

func markBatchDuplicates(outcomes []MessageOutcome, stored []models.StoredTransaction, survivors map[string]struct{}) {
	idx := 0
	seen := make(map[string]struct{}, len(stored))
	for i := range outcomes {
		if !outcomes[i].Extracted {
			continue
		}
		hash := stored[idx].HashID
		idx++
		if _, already := seen[hash]; already {
			outcomes[i].Duplicate = true
			continue
		}
		seen[hash] = struct{}{}
		if _, ok := survivors[hash]; !ok {
			outcomes[i].Duplicate = true
		}
	}
}
