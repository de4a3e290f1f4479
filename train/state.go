package train

// Checkpoint is the summary emitted every EvalEvery epochs.
type Checkpoint struct {
	Epoch    int     `json:"epoch"`
	Total    float64 `json:"total"`
	MSE      float64 `json:"mse"`
	KL       float64 `json:"kl"`
	Physics  float64 `json:"physics"`
	Coverage float64 `json:"coverage"`
}

// State is everything a run accumulates. KLLoss holds the KL already divided
// by the training-set size.
type State struct {
	Epochs      int
	TotalLoss   []float64
	KLLoss      []float64
	MSELoss     []float64
	PhysicsLoss []float64
	Checkpoints []Checkpoint
	Stopper     EarlyStopper
	StopReason  StopReason

	// Optimizer steps taken on each parameter group.
	MeanUpdates  int
	ScaleUpdates int
}

func newState(capacity int) *State {
	return &State{
		TotalLoss:   make([]float64, 0, capacity),
		KLLoss:      make([]float64, 0, capacity),
		MSELoss:     make([]float64, 0, capacity),
		PhysicsLoss: make([]float64, 0, capacity),
	}
}

func (s *State) append(total, kl, mse, phys float64) {
	s.TotalLoss = append(s.TotalLoss, total)
	s.KLLoss = append(s.KLLoss, kl)
	s.MSELoss = append(s.MSELoss, mse)
	s.PhysicsLoss = append(s.PhysicsLoss, phys)
	s.Epochs = len(s.TotalLoss)
}

// LastCheckpoint returns the most recent checkpoint, if any.
func (s *State) LastCheckpoint() (Checkpoint, bool) {
	if len(s.Checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return s.Checkpoints[len(s.Checkpoints)-1], true
}
