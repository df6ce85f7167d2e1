package service

import (
	"context"
	"fmt"

	"github.com/pharmastock/pharmastock-backend/internal/stock/domain"
	"github.com/pharmastock/pharmastock-backend/internal/stock/rotation"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
)

const (
	dateLayout = "2006-01-02"

	signalementSheet = "Signalements"
	inventaireSheet  = "Inventaire"
)

// SignalementLister lists signalements for export
type SignalementLister interface {
	List(ctx context.Context, filter domain.SignalementFilter) ([]*domain.Signalement, error)
}

// InventaireReader reads an inventaire and its items for export
type InventaireReader interface {
	GetByID(ctx context.Context, id string) (*domain.Inventaire, error)
	ListItems(ctx context.Context, inventaireID string) ([]*domain.InventaireItem, error)
}

// ExportService renders XLSX workbooks
type ExportService struct {
	signalements SignalementLister
	rotations    rotation.Store
	inventaires  InventaireReader
	matcher      *rotation.Matcher
	logger       *logger.Logger
}

// NewExportService creates a new export service
func NewExportService(signalements SignalementLister, rotations rotation.Store, inventaires InventaireReader, log *logger.Logger) *ExportService {
	if log == nil {
		log = logger.Nop()
	}
	return &ExportService{
		signalements: signalements,
		rotations:    rotations,
		inventaires:  inventaires,
		matcher:      rotation.NewMatcher(rotations, log),
		logger:       log,
	}
}

var signalementHeaders = []interface{}{
	"Product code", "Quantity", "Expiration date", "Status", "Urgency",
	"Sell-through probability (%)", "Rotation code", "Monthly rotation",
	"Unit purchase price", "Stock value", "Comment",
}

var inventaireHeaders = []interface{}{
	"Product code", "Quantity", "Expiration date", "Lot number", "Signalement",
}

// ExportSignalements renders the signalements matching filter with their
// matched rotation, unit price and stock value.
func (s *ExportService) ExportSignalements(ctx context.Context, filter domain.SignalementFilter) ([]byte, error) {
	filter.Limit, filter.Offset = 0, 0
	signalements, err := s.signalements.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	candidates, err := s.rotations.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	matcher := s.matcher.WithStore(rotation.NewIndex(candidates))

	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, signalementSheet, signalementHeaders); err != nil {
		return nil, err
	}

	for i, sig := range signalements {
		match, err := matcher.Find(ctx, sig.ProductCode)
		if err != nil {
			return nil, err
		}

		row := []interface{}{
			sig.ProductCode,
			sig.Quantity,
			sig.ExpirationDate.Format(dateLayout),
			string(sig.Status),
			"",
			"",
			"", "", "", "",
			"",
		}
		if sig.ComputedUrgency != nil {
			row[4] = string(*sig.ComputedUrgency)
		}
		if sig.SellThroughProbability != nil {
			row[5] = *sig.SellThroughProbability
		}
		if match != nil {
			rot := match.Rotation
			row[6] = rot.Code
			row[7] = rot.MonthlyRotation.InexactFloat64()
			if rot.UnitPurchasePrice.Valid {
				row[8] = rot.UnitPurchasePrice.Decimal.InexactFloat64()
			}
			if value := rot.StockValue(sig.Quantity); value.Valid {
				row[9] = value.Decimal.InexactFloat64()
			}
		}
		if sig.Comment != nil {
			row[10] = *sig.Comment
		}

		if err := setRow(f, signalementSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	s.logger.Info().Int("rows", len(signalements)).Msg("signalement export generated")

	return writeWorkbook(f)
}

// ExportInventaire renders the items of one inventaire
func (s *ExportService) ExportInventaire(ctx context.Context, id string) ([]byte, error) {
	inv, err := s.inventaires.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	items, err := s.inventaires.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := newSheet(f, inventaireSheet, inventaireHeaders); err != nil {
		return nil, err
	}

	for i, item := range items {
		row := []interface{}{item.ProductCode, item.Quantity, "", "", ""}
		if item.ExpirationDate != nil {
			row[2] = item.ExpirationDate.Format(dateLayout)
		}
		if item.LotNumber != nil {
			row[3] = *item.LotNumber
		}
		if item.SignalementID != nil {
			row[4] = *item.SignalementID
		}

		if err := setRow(f, inventaireSheet, i+2, row); err != nil {
			return nil, err
		}
	}

	s.logger.Info().Str("inventaire_id", inv.ID).Int("rows", len(items)).Msg("inventaire export generated")

	return writeWorkbook(f)
}

// newSheet replaces the default sheet with a named one carrying a bold header row
func newSheet(f *excelize.File, name string, headers []interface{}) error {
	if err := f.SetSheetName("Sheet1", name); err != nil {
		return err
	}

	if err := setRow(f, name, 1, headers); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(name, "A1", last, bold); err != nil {
		return err
	}

	return f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func writeWorkbook(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
