package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stitchworks/garment-docs-api/internal/models"
	"github.com/stitchworks/garment-docs-api/pkg/export"
	"github.com/stitchworks/garment-docs-api/pkg/storage"
)

type exportDocumentReader interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
}

type exportInspectionReader interface {
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Inspection, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds export datasets from documents and inspections
// and persists rendered files.
type ExportService struct {
	documents   exportDocumentReader
	inspections exportInspectionReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// NewExportService constructs an ExportService.
func NewExportService(documents exportDocumentReader, inspections exportInspectionReader, storage fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		documents:   documents,
		inspections: inspections,
		storage:     storage,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the dataset according to the job definition and stores
// the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	docPart := sanitizeFilename(job.Params.DocumentID)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), docPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeMeasurements:
		return s.buildMeasurementDataset(ctx, job.Params)
	case models.ExportTypeDefects:
		return s.buildDefectDataset(ctx, job.Params)
	case models.ExportTypeWorkflow:
		return s.buildWorkflowDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

func (s *ExportService) buildMeasurementDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	insp, err := s.resolveInspection(ctx, params)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Point", "Measurement", "Size", "Color", "Standard", "Actual", "Tol +", "Tol -", "Diff", "Out of Tolerance"}
	dataRows := make([]map[string]string, 0, len(insp.Table.Rows)*len(insp.Table.Groups))
	for _, row := range insp.Table.Rows {
		for _, group := range insp.Table.Groups {
			cell, ok := row.Groups[group.ID]
			if !ok {
				continue
			}
			for i, col := range group.ColorColumns {
				standard := ""
				if i < len(cell.SubColumns) {
					standard = cell.SubColumns[i].StandardValue
				}
				result := CheckTolerance(cell.ActualValue, standard, row.TolerancePlus, row.ToleranceMinus, insp.MasterTolerance)
				outCol := ""
				if result.HasData {
					outCol = fmt.Sprintf("%t", result.OutOfTolerance)
				}
				dataRows = append(dataRows, map[string]string{
					"Point":            row.Point,
					"Measurement":      row.Name,
					"Size":             group.Size,
					"Color":            col.Color,
					"Standard":         standard,
					"Actual":           cell.ActualValue,
					"Tol +":            row.TolerancePlus,
					"Tol -":            row.ToleranceMinus,
					"Diff":             result.DiffDisplay(),
					"Out of Tolerance": outCol,
				})
			}
		}
	}
	title := fmt.Sprintf("Measurement Report %s (%s)", insp.DocumentID, insp.Phase)
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func (s *ExportService) buildDefectDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	insp, err := s.resolveInspection(ctx, params)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Description", "Critical", "Major", "Minor"}
	dataRows := make([]map[string]string, 0, len(insp.Defects)+1)
	for _, defect := range insp.Defects {
		dataRows = append(dataRows, map[string]string{
			"Description": defect.Description,
			"Critical":    fmt.Sprintf("%d", defect.Critical),
			"Major":       fmt.Sprintf("%d", defect.Major),
			"Minor":       fmt.Sprintf("%d", defect.Minor),
		})
	}
	totals := ComputeDefectTotals(insp.Defects)
	dataRows = append(dataRows, map[string]string{
		"Description": "TOTAL",
		"Critical":    fmt.Sprintf("%d", totals.Critical),
		"Major":       fmt.Sprintf("%d", totals.Major),
		"Minor":       fmt.Sprintf("%d", totals.Minor),
	})
	title := fmt.Sprintf("Defect Report %s (%s) %s", insp.DocumentID, insp.Phase, insp.OverallResult)
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func (s *ExportService) buildWorkflowDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	doc, err := s.documents.GetByID(ctx, params.DocumentID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := []string{"Timestamp", "Action", "User", "Role", "Comments"}
	dataRows := make([]map[string]string, 0, len(doc.Workflow.History))
	for _, action := range doc.Workflow.History {
		dataRows = append(dataRows, map[string]string{
			"Timestamp": action.Timestamp.UTC().Format(time.RFC3339),
			"Action":    string(action.Action),
			"User":      action.UserName,
			"Role":      string(action.UserRole),
			"Comments":  action.Comments,
		})
	}
	title := fmt.Sprintf("Approval History %s (%s)", doc.Name, doc.Workflow.Status)
	return export.Dataset{Headers: headers, Rows: dataRows}, title, nil
}

func (s *ExportService) resolveInspection(ctx context.Context, params models.ExportJobParams) (*models.Inspection, error) {
	if params.InspectionID != nil && *params.InspectionID != "" {
		return s.inspections.GetByID(ctx, *params.InspectionID)
	}
	inspections, err := s.inspections.ListByDocument(ctx, params.DocumentID)
	if err != nil {
		return nil, err
	}
	if len(inspections) == 0 {
		return nil, fmt.Errorf("document %s has no inspections", params.DocumentID)
	}
	// latest phase wins when none is named
	return &inspections[len(inspections)-1], nil
}
