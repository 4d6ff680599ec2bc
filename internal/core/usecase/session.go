package usecase

import (
	"fmt"
	"time"

	"github.com/kirillkom/shipment-delay-console/internal/core/domain"
)

type Phase string

const (
	PhaseIdle            Phase = "idle"
	PhaseValidating      Phase = "validating"
	PhaseUploading       Phase = "uploading"
	PhaseUploaded        Phase = "uploaded"
	PhaseClassifyPending Phase = "classify_pending"
	PhaseClassifyDone    Phase = "classify_done"
	PhaseRegressPending  Phase = "regress_pending"
	PhaseDone            Phase = "done"
	PhaseError           Phase = "error"
)

const (
	opUpload   = "upload"
	opClassify = "classify"
	opRegress  = "regress"
	opOptimize = "optimize"
)

// InFlight records outstanding requests. Classify and Regress hold the
// generation the request was issued against; zero means idle.
type InFlight struct {
	Upload   bool
	Classify uint64
	Regress  uint64
}

// Session is the whole pipeline state. Transition methods take and return
// values; the controller keeps the only live copy.
type Session struct {
	Phase       Phase
	Resume      Phase
	Message     string
	Generation  uint64
	Dataset     *domain.Dataset
	Predictions domain.PredictionSet
	Regressions domain.RegressionSet
	InFlight    InFlight
}

// ticket ties an in-flight request to the dataset it was issued for.
type ticket struct {
	operation  string
	generation uint64
	datasetID  string
}

// settled is the phase the data alone implies.
func (s Session) settled() Phase {
	switch {
	case s.Dataset == nil:
		return PhaseIdle
	case s.Regressions != nil:
		return PhaseDone
	case s.Predictions != nil:
		return PhaseClassifyDone
	default:
		return PhaseUploaded
	}
}

// resting is the phase to show once a request completes while others may
// still be outstanding for the active dataset.
func (s Session) resting() Phase {
	switch {
	case s.InFlight.Upload:
		return PhaseUploading
	case s.Dataset != nil && s.InFlight.Regress == s.Generation:
		return PhaseRegressPending
	case s.Dataset != nil && s.InFlight.Classify == s.Generation:
		return PhaseClassifyPending
	default:
		return s.settled()
	}
}

func (s Session) fail(message string) Session {
	s.Phase = PhaseError
	s.Resume = s.settled()
	s.Message = message
	return s
}

func (s Session) selectFile() (Session, error) {
	if s.InFlight.Upload {
		return s, domain.WrapError(domain.ErrBusy, "select file", fmt.Errorf("upload in progress"))
	}
	s.Phase = PhaseValidating
	s.Resume = ""
	s.Message = ""
	return s, nil
}

func (s Session) rejectFile(err error) Session {
	return s.fail(domain.UserMessage(err))
}

func (s Session) validated() Session {
	s.Phase = PhaseUploading
	s.InFlight.Upload = true
	s.Message = "Uploading..."
	return s
}

func (s Session) uploadSucceeded(ds *domain.Dataset) Session {
	s.InFlight.Upload = false
	s.Generation++
	s.Dataset = ds
	s.Predictions = nil
	s.Regressions = nil
	s.Resume = ""
	s.Phase = s.resting()
	s.Message = fmt.Sprintf("Upload successful: %d rows from %s", ds.Len(), ds.Filename)
	return s
}

func (s Session) uploadFailed(err error) Session {
	s.InFlight.Upload = false
	return s.fail("Upload failed: " + domain.UserMessage(err))
}

func (s Session) begin(operation string) (Session, ticket, error) {
	if s.Dataset == nil {
		return s, ticket{}, domain.WrapError(domain.ErrNoDataset, operation, fmt.Errorf("upload a CSV file first"))
	}
	t := ticket{operation: operation, generation: s.Generation, datasetID: s.Dataset.ID}
	switch operation {
	case opClassify:
		if s.InFlight.Classify != 0 {
			return s, ticket{}, domain.WrapError(domain.ErrBusy, operation, fmt.Errorf("prediction in progress"))
		}
		s.InFlight.Classify = s.Generation
		s.Phase = PhaseClassifyPending
	case opRegress:
		if s.InFlight.Regress != 0 {
			return s, ticket{}, domain.WrapError(domain.ErrBusy, operation, fmt.Errorf("regression in progress"))
		}
		s.InFlight.Regress = s.Generation
		s.Phase = PhaseRegressPending
	default:
		return s, ticket{}, fmt.Errorf("unknown pipeline operation %q", operation)
	}
	s.Resume = ""
	return s, t, nil
}

func (s Session) release(t ticket) Session {
	switch t.operation {
	case opClassify:
		if s.InFlight.Classify == t.generation {
			s.InFlight.Classify = 0
		}
	case opRegress:
		if s.InFlight.Regress == t.generation {
			s.InFlight.Regress = 0
		}
	}
	return s
}

func (s Session) isStale(t ticket) bool {
	return s.Dataset == nil || t.generation != s.Generation
}

// completed stores a result set for t. Stale results leave the session's data
// untouched; results whose length does not match the rows fail the step.
func (s Session) completed(t ticket, values []float64) (Session, error) {
	s = s.release(t)
	if s.isStale(t) {
		return s, domain.WrapError(domain.ErrStale, t.operation, fmt.Errorf("dataset %s is no longer active", t.datasetID))
	}
	if len(values) != s.Dataset.Len() {
		err := integrityError(resultKind(t.operation), len(values), s.Dataset.Len())
		return s.fail(domain.UserMessage(err)), err
	}

	switch t.operation {
	case opClassify:
		s.Predictions = domain.PredictionSet(values)
		s.Message = fmt.Sprintf("Prediction completed for %d rows", len(values))
	case opRegress:
		s.Regressions = domain.RegressionSet(values)
		s.Message = fmt.Sprintf("Regression completed for %d rows", len(values))
	}
	s.Resume = ""
	s.Phase = s.resting()
	return s, nil
}

// failed records a failed request. The second return value reports whether
// the failure belonged to a dataset that is no longer active.
func (s Session) failed(t ticket, err error) (Session, bool) {
	s = s.release(t)
	if s.isStale(t) {
		return s, true
	}
	label := "Prediction failed: "
	if t.operation == opRegress {
		label = "Regression failed: "
	}
	return s.fail(label + domain.UserMessage(err)), false
}

func resultKind(operation string) string {
	if operation == opRegress {
		return "regression"
	}
	return "prediction"
}

// DatasetSummary describes the active dataset without its rows.
type DatasetSummary struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Rows       int       `json:"rows"`
	Columns    []string  `json:"columns"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type InFlightView struct {
	Upload   bool `json:"upload"`
	Classify bool `json:"classify"`
	Regress  bool `json:"regress"`
	Optimize bool `json:"optimize"`
}

// Actions tells the front end which controls are enabled.
type Actions struct {
	Upload   bool `json:"upload"`
	Classify bool `json:"classify"`
	Regress  bool `json:"regress"`
	Optimize bool `json:"optimize"`
}

type Snapshot struct {
	Phase          Phase           `json:"phase"`
	ResumePhase    Phase           `json:"resume_phase,omitempty"`
	Message        string          `json:"message,omitempty"`
	Generation     uint64          `json:"generation"`
	Dataset        *DatasetSummary `json:"dataset,omitempty"`
	HasPredictions bool            `json:"has_predictions"`
	HasRegressions bool            `json:"has_regressions"`
	InFlight       InFlightView    `json:"in_flight"`
	Actions        Actions         `json:"actions"`
}

func (s Session) snapshot(optimizing bool) Snapshot {
	out := Snapshot{
		Phase:          s.Phase,
		ResumePhase:    s.Resume,
		Message:        s.Message,
		Generation:     s.Generation,
		HasPredictions: s.Predictions != nil,
		HasRegressions: s.Regressions != nil,
		InFlight: InFlightView{
			Upload:   s.InFlight.Upload,
			Classify: s.InFlight.Classify != 0,
			Regress:  s.InFlight.Regress != 0,
			Optimize: optimizing,
		},
	}
	if s.Dataset != nil {
		out.Dataset = &DatasetSummary{
			ID:         s.Dataset.ID,
			Filename:   s.Dataset.Filename,
			Rows:       s.Dataset.Len(),
			Columns:    s.Dataset.Columns,
			UploadedAt: s.Dataset.UploadedAt,
		}
	}
	out.Actions = Actions{
		Upload:   !s.InFlight.Upload,
		Classify: s.Dataset != nil && s.InFlight.Classify == 0,
		Regress:  s.Dataset != nil && s.InFlight.Regress == 0,
		Optimize: !optimizing,
	}
	return out
}
