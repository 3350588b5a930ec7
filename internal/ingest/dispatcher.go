package ingest

import (
	"context"
	"fmt"
	"mime/multipart"

	"github.com/galoberlyn/beezbuddy-be/internal/storage"
	"github.com/galoberlyn/beezbuddy-be/internal/workflow"
	"github.com/galoberlyn/beezbuddy-be/pkg/logging"
)

// Link is one page to ingest. SPA pages are rendered through the headless
// browser before their HTML is forwarded.
type Link struct {
	URL   string
	IsSPA bool
}

// StoredDocument is the durable copy of an uploaded file, kept in object
// storage alongside the workflow dispatch.
type StoredDocument struct {
	ObjectKey string
	Filename  string
}

// Dispatcher hands knowledge-base material to the workflow engine. Every
// dispatch is synchronous and fail-fast: the first error aborts the batch
// and surfaces to the caller.
type Dispatcher struct {
	workflow *workflow.Client
	storage  *storage.S3Client
	spa      Renderer
	static   Renderer
	logger   logging.Logger
}

type DispatcherConfig struct {
	Workflow *workflow.Client
	Storage  *storage.S3Client
	// SPA renders JavaScript pages; nil disables SPA ingestion.
	SPA    Renderer
	Static Renderer
	Logger logging.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Static == nil {
		cfg.Static = NewHTTPFetcher()
	}
	return &Dispatcher{
		workflow: cfg.Workflow,
		storage:  cfg.Storage,
		spa:      cfg.SPA,
		static:   cfg.Static,
		logger:   cfg.Logger,
	}
}

// DispatchDocuments stores each file in object storage, then sends it to
// the workflow engine for chunking and embedding. Returns the stored
// object keys for bookkeeping.
func (d *Dispatcher) DispatchDocuments(ctx context.Context, job workflow.Job, files []*multipart.FileHeader) ([]StoredDocument, error) {
	var stored []StoredDocument
	for _, header := range files {
		doc, err := d.dispatchDocument(ctx, job, header)
		if err != nil {
			return stored, err
		}
		stored = append(stored, doc)
	}
	return stored, nil
}

func (d *Dispatcher) dispatchDocument(ctx context.Context, job workflow.Job, header *multipart.FileHeader) (StoredDocument, error) {
	key := storage.DocumentKey(job.OrganizationID, header.Filename)

	file, err := header.Open()
	if err != nil {
		return StoredDocument{}, fmt.Errorf("open upload %s: %w", header.Filename, err)
	}
	err = d.storage.Upload(ctx, key, file, header.Header.Get("Content-Type"))
	file.Close()
	if err != nil {
		return StoredDocument{}, err
	}

	// Fresh reader: the workflow engine gets the same bytes from the start.
	file, err = header.Open()
	if err != nil {
		return StoredDocument{}, fmt.Errorf("reopen upload %s: %w", header.Filename, err)
	}
	defer file.Close()

	if err := d.workflow.Upload(ctx, job, header.Filename, file); err != nil {
		return StoredDocument{}, err
	}

	d.logger.WithFields(logging.Fields{
		"agent_id": job.AgentID,
		"filename": header.Filename,
	}).Info("Document dispatched for ingestion")
	return StoredDocument{ObjectKey: key, Filename: header.Filename}, nil
}

// DispatchPlainText sends free text for chunking and embedding.
func (d *Dispatcher) DispatchPlainText(ctx context.Context, job workflow.Job, text string) error {
	if err := d.workflow.Plaintext(ctx, job, text); err != nil {
		return err
	}
	d.logger.WithFields(logging.Fields{
		"agent_id": job.AgentID,
		"bytes":    len(text),
	}).Info("Plain text dispatched for ingestion")
	return nil
}

// DispatchLinks renders each page and forwards its HTML, one scrape job
// per link.
func (d *Dispatcher) DispatchLinks(ctx context.Context, job workflow.Job, links []Link) error {
	for _, link := range links {
		renderer := d.static
		if link.IsSPA {
			if d.spa == nil {
				return fmt.Errorf("SPA rendering is disabled; cannot ingest %s", link.URL)
			}
			renderer = d.spa
		}

		html, err := renderer.Render(ctx, link.URL)
		if err != nil {
			return fmt.Errorf("render %s: %w", link.URL, err)
		}
		if err := d.workflow.Scrape(ctx, job, html); err != nil {
			return fmt.Errorf("scrape dispatch for %s: %w", link.URL, err)
		}

		d.logger.WithFields(logging.Fields{
			"agent_id": job.AgentID,
			"url":      link.URL,
			"spa":      link.IsSPA,
		}).Info("Page dispatched for ingestion")
	}
	return nil
}
