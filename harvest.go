package sossml2gpkg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrBatchMismatch = errors.New("bulk metadata does not match station list")

// Pull selects how stations are chosen.
type Pull int

const (
	// CatalogPull harvests every non-network offering the service lists.
	CatalogPull Pull = iota
	// TargetedPull harvests an explicit list of station URNs.
	TargetedPull
)

func (p Pull) String() string {
	switch p {
	case CatalogPull:
		return "catalog"
	case TargetedPull:
		return "targeted"
	default:
		return fmt.Sprintf("Pull(%d)", int(p))
	}
}

type HarvestOpts struct {
	// SkipFailed reports stations that cannot be fetched or extracted instead
	// of aborting the run.
	SkipFailed bool
	// ForceValid drops records that fail validation.
	ForceValid bool
	// IgnoreInvalid keeps records that fail validation.
	IgnoreInvalid bool
	// Now resolves open-ended observation periods; defaults to time.Now.
	Now func() time.Time
}

// StationFailure records a station that was skipped.
type StationFailure struct {
	URN string
	Err error
}

type Result struct {
	Pull   Pull
	Table  *Table
	Failed []StationFailure
	Issues []string
}

func HarvestCatalog(ctx context.Context, c *Client, opts *HarvestOpts) (*Result, error) {
	return harvest(ctx, c, CatalogPull, nil, opts)
}

// HarvestStations harvests urns verbatim, in order, without checking they exist.
func HarvestStations(ctx context.Context, c *Client, urns []string, opts *HarvestOpts) (*Result, error) {
	return harvest(ctx, c, TargetedPull, urns, opts)
}

func harvest(ctx context.Context, c *Client, pull Pull, urns []string, opts *HarvestOpts) (*Result, error) {
	if opts == nil {
		opts = &HarvestOpts{}
	}

	caps, err := c.GetCapabilities(ctx)
	if err != nil {
		return nil, err
	}

	var docs []MetadataResult
	switch pull {
	case CatalogPull:
		urns = StationURNs(caps.Offerings)
		slog.Info(fmt.Sprintf("Harvesting %d station(s) from %s", len(urns), c.Endpoint))
		docs, err = c.metadata(ctx, urns, !opts.SkipFailed)
		if err != nil {
			return nil, err
		}
		if len(docs) != len(urns) {
			return nil, fmt.Errorf("%w: %d stations, %d documents", ErrBatchMismatch, len(urns), len(docs))
		}
	case TargetedPull:
		slog.Info(fmt.Sprintf("Harvesting %d listed station(s) from %s", len(urns), c.Endpoint))
	default:
		panic("unknown pull " + pull.String())
	}

	extractOpts := &ExtractOpts{Now: opts.Now}
	result := &Result{Pull: pull}
	var records []StationRecord
	for i, urn := range urns {
		var doc *SensorML
		if pull == CatalogPull {
			if docs[i].URN != urn {
				return nil, fmt.Errorf("%w: document %d is %s, want %s", ErrBatchMismatch, i, docs[i].URN, urn)
			}
			doc, err = docs[i].Doc, docs[i].Err
		} else {
			doc, err = c.DescribeSensor(ctx, urn)
		}

		var rec StationRecord
		if err == nil {
			rec, err = Extract(urn, doc, c.Vocabulary, extractOpts)
		}
		if err != nil {
			if !opts.SkipFailed {
				return nil, fmt.Errorf("station %s: %w", urn, err)
			}
			slog.Warn(fmt.Sprintf("Skipping station %s: %s", urn, err))
			result.Failed = append(result.Failed, StationFailure{URN: urn, Err: err})
			continue
		}
		records = append(records, rec)
	}
	slog.Info(fmt.Sprintf("Extracted %d station(s), skipped %d", len(records), len(result.Failed)))

	var validationLogLevel slog.Level
	if opts.ForceValid || opts.IgnoreInvalid {
		validationLogLevel = slog.LevelWarn
	} else {
		validationLogLevel = slog.LevelError
	}

	issues, table, err := validate(NewTable(records), validateOpts{
		force:    opts.ForceValid,
		ignore:   opts.IgnoreInvalid,
		logLevel: validationLogLevel,
	})
	result.Issues = issues
	result.Table = table
	if err != nil {
		return result, err
	}
	return result, nil
}
