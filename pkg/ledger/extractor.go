package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/staffmap/pkg/constants"
	"github.com/agentstation/staffmap/pkg/errors"
	"github.com/agentstation/staffmap/pkg/logging"
)

// Extractor turns ledger sources into Ledgers.
type Extractor struct {
	slotMinutes float64
	logger      *zerolog.Logger
}

type options struct {
	slotMinutes float64
	logger      *zerolog.Logger
}

// Option configures an Extractor.
type Option func(*options) error

// WithSlotMinutes sets the slot duration used by rows that do not carry one.
func WithSlotMinutes(minutes float64) Option {
	return func(o *options) error {
		if minutes <= 0 {
			return &errors.ValidationError{
				Field:   "slot_minutes",
				Value:   minutes,
				Message: "must be positive",
			}
		}
		o.slotMinutes = minutes
		return nil
	}
}

// WithLogger sets the extractor logger. The context logger is used otherwise.
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = logger
		return nil
	}
}

// NewExtractor creates an Extractor.
func NewExtractor(opts ...Option) (*Extractor, error) {
	o := &options{slotMinutes: constants.DefaultSlotMinutes}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return &Extractor{slotMinutes: o.slotMinutes, logger: o.logger}, nil
}

// Extract reads the supply and demand sources concurrently. A source problem
// never fails the call: that side becomes an empty, Missing ledger. Only
// context cancellation is returned as an error.
func (e *Extractor) Extract(ctx context.Context, supply, demand Source) (*Ledger, *Ledger, error) {
	var supplyLedger, demandLedger *Ledger

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		supplyLedger, err = e.extract(gctx, Supply, supply)
		return err
	})
	g.Go(func() error {
		var err error
		demandLedger, err = e.extract(gctx, Demand, demand)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return supplyLedger, demandLedger, nil
}

// ExtractOne reads a single source as the given provenance.
func (e *Extractor) ExtractOne(ctx context.Context, provenance Provenance, src Source) (*Ledger, error) {
	return e.extract(ctx, provenance, src)
}

func (e *Extractor) log(ctx context.Context) *zerolog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.FromContext(ctx)
}

func (e *Extractor) extract(ctx context.Context, provenance Provenance, src Source) (*Ledger, error) {
	ctx = logging.WithLedger(logging.WithLogger(ctx, e.log(ctx)), provenance.String())
	logger := logging.FromContext(ctx)

	if src == nil {
		missing := errors.NewMissingSourceError(provenance.String(), "<none>", nil)
		logger.Warn().Msg("Ledger source not configured")
		return Empty(provenance, "", missing.Error()), nil
	}
	if src.Provenance() != "" && src.Provenance() != provenance {
		logger.Warn().
			Str("source", src.Name()).
			Str("declared", src.Provenance().String()).
			Msg("Source provenance differs from the ledger it feeds")
	}

	rows, err := src.Rows(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		missing := errors.NewMissingSourceError(provenance.String(), src.Name(), err)
		logger.Warn().Err(err).Str("source", src.Name()).Msg("Ledger source unavailable, continuing with empty ledger")
		l := Empty(provenance, src.Name(), missing.Error())
		l.Metadata.Upstream = src.Metadata()
		return l, nil
	}
	if len(rows) == 0 {
		missing := errors.NewMissingSourceError(provenance.String(), src.Name(), nil)
		logger.Warn().Str("source", src.Name()).Msg("Ledger source is empty")
		l := Empty(provenance, src.Name(), missing.Error())
		l.Metadata.Upstream = src.Metadata()
		return l, nil
	}

	l := e.fold(provenance, src.Name(), rows)
	l.Metadata.Upstream = src.Metadata()

	logger.Debug().
		Str("source", src.Name()).
		Int("rows", l.Metadata.Rows).
		Int("labels", l.Metadata.Labels).
		Int("rejected", l.Metadata.Rejected).
		Msg("Extracted ledger")
	return l, nil
}

// labelState accumulates rows for one canonical label.
type labelState struct {
	record   CategoryRecord
	entities map[string]struct{}
	aliases  map[string]struct{}
}

func (e *Extractor) fold(provenance Provenance, source string, rows []Row) *Ledger {
	l := &Ledger{
		Provenance: provenance,
		Source:     source,
		Records:    make(map[string]CategoryRecord),
		Partitions: make(map[string]float64),
	}
	l.Metadata.Aliases = make(map[string]string)

	states := make(map[string]*labelState)
	entities := make(map[string]struct{})

	for i, row := range rows {
		l.Metadata.Rows++

		label := NormalizeLabel(row.Label)
		if label == "" {
			l.Metadata.Rejected++
			l.Metadata.Warnings = append(l.Metadata.Warnings, fmt.Sprintf("row %d: empty label", i))
			continue
		}
		hours := row.Contribution(e.slotMinutes)
		if hours < 0 {
			l.Metadata.Rejected++
			l.Metadata.Warnings = append(l.Metadata.Warnings,
				fmt.Sprintf("row %d: negative contribution %.2fh for %q rejected", i, hours, label))
			continue
		}
		if math.IsNaN(hours) || math.IsInf(hours, 0) {
			l.Metadata.Rejected++
			l.Metadata.Warnings = append(l.Metadata.Warnings,
				fmt.Sprintf("row %d: non-finite contribution %v for %q rejected", i, hours, label))
			continue
		}

		st, ok := states[label]
		if !ok {
			st = &labelState{
				record:   CategoryRecord{Label: label, Provenance: provenance},
				entities: make(map[string]struct{}),
				aliases:  make(map[string]struct{}),
			}
			states[label] = st
		}
		st.record.Hours += hours
		st.record.Metadata.Rows++

		if row.Label != label {
			st.aliases[row.Label] = struct{}{}
			l.Metadata.Aliases[row.Label] = label
		}
		if row.Entity != "" {
			st.entities[row.Entity] = struct{}{}
			entities[row.Entity] = struct{}{}
		}
		if !row.Date.IsZero() {
			st.record.Metadata.FirstDate = earliest(st.record.Metadata.FirstDate, row.Date)
			st.record.Metadata.LastDate = latest(st.record.Metadata.LastDate, row.Date)
			l.Metadata.FirstDate = earliest(l.Metadata.FirstDate, row.Date)
			l.Metadata.LastDate = latest(l.Metadata.LastDate, row.Date)
		}

		partition := NormalizeLabel(row.Partition)
		if partition == "" {
			partition = constants.UnassignedPartition
		}
		l.Partitions[partition] += hours
	}

	for label, st := range states {
		st.record.Metadata.Entities = len(st.entities)
		if len(st.aliases) > 0 {
			st.record.Metadata.Aliases = sortedKeys(st.aliases)
		}
		l.Records[label] = st.record
	}

	l.Metadata.Records = len(l.Records)
	l.Metadata.Labels = len(l.Records)
	l.Metadata.Entities = len(entities)
	if len(l.Metadata.Aliases) == 0 {
		l.Metadata.Aliases = nil
	}
	if len(l.Records) == 0 {
		l.Missing = true
		missing := errors.NewMissingSourceError(provenance.String(), source, nil)
		l.Metadata.Warnings = append(l.Metadata.Warnings, missing.Error())
	}
	// Only the "unassigned" bucket means no partition information at all.
	if _, only := l.Partitions[constants.UnassignedPartition]; only && len(l.Partitions) == 1 {
		l.Partitions = map[string]float64{}
	}
	return l
}

func earliest(current, candidate time.Time) time.Time {
	if current.IsZero() || candidate.Before(current) {
		return candidate
	}
	return current
}

func latest(current, candidate time.Time) time.Time {
	if current.IsZero() || candidate.After(current) {
		return candidate
	}
	return current
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
