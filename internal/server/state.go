package server

import "sync"

// StatusType is a subsystem state reported by /status.
type StatusType string

const (
	StatusIdle       StatusType = "idle"
	StatusProcessing StatusType = "processing"
	StatusSearching  StatusType = "searching"
	StatusGenerating StatusType = "generating"
	StatusComplete   StatusType = "complete"
	StatusError      StatusType = "error"
)

// IngestionStatus reports the ingestion subsystem.
type IngestionStatus struct {
	Status             StatusType `json:"status"`
	CurrentFile        string     `json:"current_file,omitempty"`
	DocumentsProcessed int        `json:"documents_processed"`
}

// RetrievalStatus reports the retrieval subsystem.
type RetrievalStatus struct {
	Status          StatusType `json:"status"`
	LastQueryTimeMs float64    `json:"last_query_time_ms,omitempty"`
}

// GenerationStatus reports the generation subsystem.
type GenerationStatus struct {
	Status               StatusType `json:"status"`
	LastGenerationTimeMs float64    `json:"last_generation_time_ms,omitempty"`
}

// SystemStatus is the /status response body.
type SystemStatus struct {
	Ingestion       IngestionStatus  `json:"ingestion"`
	Retrieval       RetrievalStatus  `json:"retrieval"`
	Generation      GenerationStatus `json:"generation"`
	QdrantConnected bool             `json:"qdrant_connected"`
	OllamaConnected bool             `json:"ollama_connected"`
	ModelsLoaded    bool             `json:"models_loaded"`
}

// appState tracks subsystem states and collaborator connectivity.
type appState struct {
	mu         sync.RWMutex
	ingestion  IngestionStatus
	retrieval  RetrievalStatus
	generation GenerationStatus
	qdrantOK   bool
	ollamaOK   bool
	modelsOK   bool
}

func newAppState() *appState {
	return &appState{
		ingestion:  IngestionStatus{Status: StatusIdle},
		retrieval:  RetrievalStatus{Status: StatusIdle},
		generation: GenerationStatus{Status: StatusIdle},
	}
}

func (s *appState) snapshot() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SystemStatus{
		Ingestion:       s.ingestion,
		Retrieval:       s.retrieval,
		Generation:      s.generation,
		QdrantConnected: s.qdrantOK,
		OllamaConnected: s.ollamaOK,
		ModelsLoaded:    s.modelsOK,
	}
}

func (s *appState) setConnectivity(qdrantOK, ollamaOK, modelsOK bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qdrantOK = qdrantOK
	s.ollamaOK = ollamaOK
	s.modelsOK = modelsOK
}

func (s *appState) setIngestion(status StatusType, currentFile string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestion.Status = status
	s.ingestion.CurrentFile = currentFile
	if status == StatusComplete {
		s.ingestion.DocumentsProcessed++
		s.ingestion.CurrentFile = ""
	}
}

func (s *appState) setQueryProgress(status StatusType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieval.Status = status
	s.generation.Status = status
}

func (s *appState) recordQueryTimes(retrievalMs, generationMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retrieval.Status = StatusComplete
	s.retrieval.LastQueryTimeMs = retrievalMs
	s.generation.Status = StatusComplete
	s.generation.LastGenerationTimeMs = generationMs
}
