package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
	"github.com/kirillkom/shipment-delay-console/internal/core/ports"
)

// PipelineController drives one upload-predict-visualize session. Remote
// calls run on the caller's goroutine without holding the lock; the session
// is only touched when a request begins and when it completes.
type PipelineController struct {
	ingest     *IngestUseCase
	predictor  ports.Predictor
	dashboards ports.DashboardSource
	optimizer  ports.Optimizer
	events     ports.EventPublisher
	observer   ports.PipelineObserver
	now        func() time.Time

	mu           sync.Mutex
	session      Session
	optimization optimizationState
}

type optimizationState struct {
	inFlight bool
	method   domain.OptimizationMethod
	result   *domain.OptimizationResult
	message  string
}

// OptimizationStatus is the arrangement panel state.
type OptimizationStatus struct {
	Running bool                       `json:"running"`
	Method  domain.OptimizationMethod  `json:"method,omitempty"`
	Message string                     `json:"message,omitempty"`
	Result  *domain.OptimizationResult `json:"result,omitempty"`
}

func NewPipelineController(
	ingest *IngestUseCase,
	predictor ports.Predictor,
	dashboards ports.DashboardSource,
	optimizer ports.Optimizer,
	events ports.EventPublisher,
	observer ports.PipelineObserver,
) *PipelineController {
	if events == nil {
		events = noopPublisher{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &PipelineController{
		ingest:     ingest,
		predictor:  predictor,
		dashboards: dashboards,
		optimizer:  optimizer,
		events:     events,
		observer:   observer,
		now:        time.Now,
		session:    Session{Phase: PhaseIdle},
	}
}

func (c *PipelineController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.snapshot(c.optimization.inFlight)
}

// Upload validates and sends a CSV. A successful upload replaces the dataset
// and clears both result sets.
func (c *PipelineController) Upload(ctx context.Context, file ports.FileUpload) (*domain.Dataset, error) {
	c.mu.Lock()
	next, err := c.session.selectFile()
	if err != nil {
		c.mu.Unlock()
		c.observer.ObserveRejected(opUpload, "busy")
		return nil, err
	}
	if err := c.ingest.Validate(file.Filename, file.MediaType); err != nil {
		c.session = next.rejectFile(err)
		snap := c.session
		c.mu.Unlock()
		c.settle(ctx, snap, domain.EventFailed)
		return nil, err
	}
	c.session = next.validated()
	c.mu.Unlock()
	c.observer.ObserveTransition(string(PhaseUploading))

	ds, err := c.ingest.Submit(ctx, file)

	c.mu.Lock()
	if err != nil {
		c.session = c.session.uploadFailed(err)
	} else {
		c.session = c.session.uploadSucceeded(ds)
	}
	snap := c.session
	c.mu.Unlock()

	if err != nil {
		c.settle(ctx, snap, domain.EventFailed)
		return nil, err
	}
	c.settle(ctx, snap, domain.EventUploaded)
	return ds, nil
}

// Classify fetches classification scores for the active dataset.
func (c *PipelineController) Classify(ctx context.Context) (domain.PredictionSet, error) {
	values, err := c.run(ctx, opClassify, func(ctx context.Context, datasetID string) ([]float64, error) {
		return c.predictor.Classify(ctx, datasetID)
	})
	if err != nil {
		return nil, err
	}
	return domain.PredictionSet(values), nil
}

// Regress fetches delay estimates for the active dataset.
func (c *PipelineController) Regress(ctx context.Context) (domain.RegressionSet, error) {
	values, err := c.run(ctx, opRegress, func(ctx context.Context, datasetID string) ([]float64, error) {
		return c.predictor.Regress(ctx, datasetID)
	})
	if err != nil {
		return nil, err
	}
	return domain.RegressionSet(values), nil
}

func (c *PipelineController) run(
	ctx context.Context,
	operation string,
	call func(context.Context, string) ([]float64, error),
) ([]float64, error) {
	c.mu.Lock()
	next, tk, err := c.session.begin(operation)
	if err != nil {
		c.mu.Unlock()
		if domain.IsKind(err, domain.ErrBusy) {
			c.observer.ObserveRejected(operation, "busy")
		}
		return nil, err
	}
	c.session = next
	c.mu.Unlock()
	c.observer.ObserveTransition(string(next.Phase))

	values, callErr := call(ctx, tk.datasetID)

	c.mu.Lock()
	var (
		snap  Session
		stale bool
	)
	if callErr != nil {
		c.session, stale = c.session.failed(tk, callErr)
		err = callErr
	} else {
		c.session, err = c.session.completed(tk, values)
		stale = domain.IsKind(err, domain.ErrStale)
	}
	snap = c.session
	c.mu.Unlock()

	if stale {
		c.observer.ObserveStaleResponse(operation)
		slog.Info("stale_response_discarded",
			"operation", operation,
			"dataset_id", tk.datasetID,
			"generation", tk.generation,
			"active_generation", snap.Generation,
		)
		if callErr != nil {
			return nil, callErr
		}
		return nil, err
	}
	if err != nil {
		c.settle(ctx, snap, domain.EventFailed)
		return nil, err
	}

	eventType := domain.EventClassified
	if operation == opRegress {
		eventType = domain.EventRegressed
	}
	c.settle(ctx, snap, eventType)
	return values, nil
}

// Dashboard fetches the chart summary for the active dataset.
func (c *PipelineController) Dashboard(ctx context.Context) (*domain.Aggregates, error) {
	c.mu.Lock()
	ds := c.session.Dataset
	generation := c.session.Generation
	c.mu.Unlock()
	if ds == nil {
		return nil, domain.WrapError(domain.ErrNoDataset, "dashboard", fmt.Errorf("upload a CSV file first"))
	}

	summary, err := c.dashboards.Dashboard(ctx, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch dashboard: %w", err)
	}

	c.mu.Lock()
	stale := c.session.Generation != generation
	c.mu.Unlock()
	if stale {
		c.observer.ObserveStaleResponse("dashboard")
		return nil, domain.WrapError(domain.ErrStale, "dashboard", fmt.Errorf("dataset %s is no longer active", ds.ID))
	}

	agg := Aggregate(summary)
	return &agg, nil
}

// Optimize runs one arrangement search. A run requested while another is
// outstanding is rejected without contacting the optimizer.
func (c *PipelineController) Optimize(ctx context.Context, method domain.OptimizationMethod) (*domain.OptimizationResult, error) {
	if _, err := domain.ParseOptimizationMethod(string(method)); err != nil {
		return nil, domain.WrapError(domain.ErrValidation, opOptimize, err)
	}

	c.mu.Lock()
	if c.optimization.inFlight {
		c.mu.Unlock()
		c.observer.ObserveRejected(opOptimize, "busy")
		return nil, domain.WrapError(domain.ErrBusy, opOptimize, fmt.Errorf("optimization in progress"))
	}
	c.optimization.inFlight = true
	c.optimization.method = method
	c.optimization.message = "Running..."
	c.mu.Unlock()

	result, err := c.optimizer.Optimize(ctx, method)

	c.mu.Lock()
	c.optimization.inFlight = false
	if err != nil {
		c.optimization.message = "Optimization failed: " + domain.UserMessage(err)
	} else {
		result.Method = method
		c.optimization.result = result
		c.optimization.message = fmt.Sprintf("Best score: %g", result.BestScore)
	}
	message := c.optimization.message
	c.mu.Unlock()

	event := domain.PipelineEvent{Type: domain.EventOptimized, Message: message}
	if err != nil {
		event.Type = domain.EventOptimizationFailed
	}
	c.publish(ctx, event)

	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *PipelineController) Optimization() OptimizationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return OptimizationStatus{
		Running: c.optimization.inFlight,
		Method:  c.optimization.method,
		Message: c.optimization.message,
		Result:  c.optimization.result,
	}
}

// View joins the active dataset with its current result sets.
func (c *PipelineController) View() (*AlignedView, error) {
	c.mu.Lock()
	ds := c.session.Dataset
	preds := c.session.Predictions
	regs := c.session.Regressions
	c.mu.Unlock()

	if ds == nil {
		return nil, domain.WrapError(domain.ErrNoDataset, "view", fmt.Errorf("upload a CSV file first"))
	}
	return Merge(ds, preds, regs)
}

// Records returns the cards matching the search box text.
func (c *PipelineController) Records(query string) ([]Card, error) {
	view, err := c.View()
	if err != nil {
		return nil, err
	}
	records, err := view.Search(query)
	if err != nil {
		return nil, err
	}
	return view.Cards(records), nil
}

// Workbook exports the active dataset with its results and the last
// optimization run.
func (c *PipelineController) Workbook() (*domain.Workbook, error) {
	c.mu.Lock()
	result := c.optimization.result
	c.mu.Unlock()

	view, err := c.View()
	if err != nil {
		if domain.IsKind(err, domain.ErrNoDataset) && result != nil {
			return BuildWorkbook(nil, result), nil
		}
		return nil, err
	}
	return BuildWorkbook(view, result), nil
}

// MapMarker is a marker with the popup content for its row.
type MapMarker struct {
	domain.MarkerPoint
	OrderTime    string `json:"order_time"`
	Country      string `json:"country"`
	City         string `json:"city"`
	ShippingMode string `json:"shipping_mode"`
	Prediction   string `json:"prediction"`
	Regression   string `json:"regression"`
}

type MapView struct {
	DatasetID string            `json:"dataset_id,omitempty"`
	Center    domain.Coordinate `json:"center"`
	Markers   []MapMarker       `json:"markers"`
}

// Map projects the active dataset. Without a dataset the map still gets the
// default viewport.
func (c *PipelineController) Map() (*MapView, error) {
	c.mu.Lock()
	ds := c.session.Dataset
	preds := c.session.Predictions
	regs := c.session.Regressions
	c.mu.Unlock()

	proj := Project(ds)
	out := &MapView{Center: proj.Center, Markers: make([]MapMarker, 0, len(proj.Markers))}
	if ds == nil {
		return out, nil
	}
	out.DatasetID = ds.ID

	if _, err := Merge(ds, preds, regs); err != nil {
		return nil, err
	}
	for _, m := range proj.Markers {
		row := ds.Rows[m.RowIndex]
		out.Markers = append(out.Markers, MapMarker{
			MarkerPoint:  m,
			OrderTime:    domain.FieldOrDash(row, domain.FieldOrderDate),
			Country:      domain.FieldOrDash(row, domain.FieldCountry),
			City:         domain.FieldOrDash(row, domain.FieldCity),
			ShippingMode: domain.FieldOrDash(row, domain.FieldShippingMode),
			Prediction:   domain.FormatPrediction(preds, m.RowIndex),
			Regression:   domain.FormatRegression(regs, m.RowIndex),
		})
	}
	return out, nil
}

func (c *PipelineController) settle(ctx context.Context, snap Session, eventType domain.EventType) {
	c.observer.ObserveTransition(string(snap.Phase))

	attrs := []any{
		"phase", snap.Phase,
		"generation", snap.Generation,
	}
	event := domain.PipelineEvent{
		Type:       eventType,
		Generation: snap.Generation,
		Phase:      string(snap.Phase),
		Message:    snap.Message,
	}
	if snap.Dataset != nil {
		attrs = append(attrs, "dataset_id", snap.Dataset.ID, "rows", snap.Dataset.Len())
		event.DatasetID = snap.Dataset.ID
		event.Rows = snap.Dataset.Len()
	}
	if snap.Phase == PhaseError {
		slog.Warn("pipeline_transition", append(attrs, "resume_phase", snap.Resume, "message", snap.Message)...)
	} else {
		slog.Info("pipeline_transition", attrs...)
	}
	c.publish(ctx, event)
}

func (c *PipelineController) publish(ctx context.Context, event domain.PipelineEvent) {
	event.ID = uuid.NewString()
	event.OccurredAt = c.now().UTC()
	if err := c.events.PublishPipelineEvent(context.WithoutCancel(ctx), event); err != nil {
		slog.Warn("pipeline_event_publish_failed", "type", event.Type, "error", err)
	}
}

type noopPublisher struct{}

func (noopPublisher) PublishPipelineEvent(context.Context, domain.PipelineEvent) error { return nil }

type noopObserver struct{}

func (noopObserver) ObserveTransition(string) {}
func (noopObserver) ObserveStaleResponse(string) {}
func (noopObserver) ObserveRejected(string, string) {}
