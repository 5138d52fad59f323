package services

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"route-pricing/internal/models"
	"route-pricing/internal/repository"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

// orderColumns is the tab-separated layout of an order export line
var orderColumns = []string{
	"order_id", "order_date", "start_postal_code", "end_postal_code",
	"price_per_km", "distance_km", "freight_amount",
	"carrier_id", "cargo_category", "status", "client_id",
}

// ImportService loads completed-order exports into the historical orders table
type ImportService struct {
	repo    repository.OrderImportRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// ImportResult contains import statistics
type ImportResult struct {
	TotalFiles        int
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Duration          time.Duration
	Errors            []string
}

// FileImportResult contains per-file import statistics
type FileImportResult struct {
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
}

// NewImportService creates a new import service
func NewImportService(repo repository.OrderImportRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ImportService {
	return &ImportService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// ImportDirectory imports every *.tsv export in dataDir. A failing file is
// recorded and skipped.
func (s *ImportService) ImportDirectory(ctx context.Context, dataDir string, batchSize int) (*ImportResult, error) {
	startTime := time.Now()
	if batchSize < 1 {
		batchSize = 1
	}

	s.logger.Info(ctx, "[IMPORT_START] Starting order import", logging.Fields{
		"data_dir":   dataDir,
		"batch_size": batchSize,
	})

	files, err := filepath.Glob(filepath.Join(dataDir, "*.tsv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no order exports found in %s", dataDir)
	}

	result := &ImportResult{
		TotalFiles: len(files),
		Errors:     make([]string, 0),
	}

	for _, filePath := range files {
		fileResult, err := s.importFile(ctx, filePath, batchSize)
		if fileResult != nil {
			result.TotalRecords += fileResult.TotalRecords
			result.SuccessfulRecords += fileResult.SuccessfulRecords
			result.FailedRecords += fileResult.FailedRecords
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to import %s: %v", filePath, err))
			s.logger.Error(ctx, "[IMPORT_FILE_ERROR] File import failed", logging.Fields{
				"file_path": filePath,
			}, err)
			s.metrics.RecordImportError("file_error")
			continue
		}

		s.logger.Info(ctx, "[IMPORT_FILE_SUCCESS] File imported", logging.Fields{
			"file_path":          filePath,
			"total_records":      fileResult.TotalRecords,
			"successful_records": fileResult.SuccessfulRecords,
			"failed_records":     fileResult.FailedRecords,
		})
	}

	result.Duration = time.Since(startTime)
	s.metrics.ImportDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[IMPORT_COMPLETE] Order import completed", logging.Fields{
		"total_files":        result.TotalFiles,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"duration_seconds":   result.Duration.Seconds(),
		"error_count":        len(result.Errors),
	})

	return result, nil
}

// importFile streams one export in batches. Rows inserted before a failing
// batch stay committed and are counted.
func (s *ImportService) importFile(ctx context.Context, filePath string, batchSize int) (*FileImportResult, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result := &FileImportResult{}
	batch := make([]*models.OrderRecord, 0, batchSize)
	importedAt := s.now().UTC()
	fileLogger := s.logger.WithFields(logging.Fields{"file_path": filePath})

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.InsertOrdersBatch(ctx, batch); err != nil {
			return fmt.Errorf("failed to insert batch: %w", err)
		}
		result.SuccessfulRecords += len(batch)
		batch = batch[:0]
		return nil
	}

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" || (lineNo == 1 && strings.HasPrefix(line, orderColumns[0])) {
			continue
		}
		result.TotalRecords++

		order, err := parseOrderLine(line)
		if err != nil {
			result.FailedRecords++
			s.metrics.RecordImportError("parse_error")
			fileLogger.Debug(ctx, "[IMPORT_PARSE_ERROR] Skipping line", logging.Fields{
				"line":  lineNo,
				"error": err.Error(),
			})
			continue
		}
		order.ImportedAt = importedAt
		batch = append(batch, order)

		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return result, fmt.Errorf("error reading file: %w", err)
	}
	if err := flush(); err != nil {
		return result, err
	}

	return result, nil
}

// parseOrderLine parses one export line.
// Format: order_id, YYYY-MM-DD, start, end, price_per_km, distance_km,
// freight_amount, carrier_id, cargo_category, status, client_id (tab separated).
// A missing price_per_km is derived from freight_amount / distance_km.
func parseOrderLine(line string) (*models.OrderRecord, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != len(orderColumns) {
		return nil, fmt.Errorf("invalid line format: expected %d fields, got %d", len(orderColumns), len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	if parts[0] == "" {
		return nil, fmt.Errorf("missing order_id")
	}

	date, err := time.Parse("2006-01-02", parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid order_date: %w", err)
	}

	for _, i := range []int{2, 3} {
		if err := models.ValidatePostalCode(orderColumns[i], parts[i]); err != nil {
			return nil, err
		}
	}

	var numbers [3]*float64
	for n, i := range []int{4, 5, 6} {
		if parts[i] == "" {
			continue
		}
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", orderColumns[i], err)
		}
		numbers[n] = &v
	}
	price, distance, amount := numbers[0], numbers[1], numbers[2]
	if price == nil && amount != nil && distance != nil && *distance > 0 {
		derived := math.Round(*amount / *distance * 10000) / 10000
		price = &derived
	}

	if parts[8] == "" {
		return nil, fmt.Errorf("missing cargo_category")
	}

	return &models.OrderRecord{
		OrderID:         parts[0],
		OrderDate:       date,
		StartPostalCode: models.NormalizeRegionCode(parts[2]),
		EndPostalCode:   models.NormalizeRegionCode(parts[3]),
		PricePerKm:      price,
		DistanceKm:      distance,
		FreightAmount:   amount,
		CarrierID:       optional(parts[7]),
		CargoCategory:   strings.ToUpper(parts[8]),
		Status:          strings.ToLower(parts[9]),
		ClientID:        optional(parts[10]),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
