// Package server exposes single-player matches over HTTP with an embedded
// GUI and a WebSocket feed of board snapshots.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"navybattle/internal/app"
	"navybattle/internal/choice"
	"navybattle/internal/codec"
	"navybattle/internal/config"
	"navybattle/internal/game"
	"navybattle/internal/logger"
	"navybattle/internal/match"
	"navybattle/internal/zk"
	"navybattle/web"
)

type Server struct {
	cfg *config.Config
	hub *Hub

	mu      sync.RWMutex
	matches map[string]*session

	keysMu sync.Mutex
	keys   *zk.Keys

	// Milliseconds since epoch when this server booted
	startAt int64
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg:     cfg,
		hub:     NewHub(),
		matches: make(map[string]*session),
		startAt: time.Now().UnixMilli(),
	}
}

func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("POST /v1/matches", s.handleCreate)
	mux.HandleFunc("GET /v1/matches/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/matches/{id}/place", s.handlePlace)
	mux.HandleFunc("POST /v1/matches/{id}/attack", s.handleAttack)
	mux.HandleFunc("GET /v1/matches/{id}/ws", s.handleWS)
	mux.HandleFunc("GET /v1/matches/{id}/commitment", s.handleCommitment)
	mux.HandleFunc("POST /v1/matches/{id}/proof", s.handleProof)

	// Serve embedded GUI at /
	mux.Handle("/", http.FileServer(web.FS()))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrOutOfBounds), errors.Is(err, game.ErrDirection):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrCellOccupied), errors.Is(err, game.ErrAdjacent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, match.ErrNotReady), errors.Is(err, match.ErrFinished),
		errors.Is(err, match.ErrAlreadyAttacked), errors.Is(err, match.ErrFleetPlaced):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	n := len(s.matches)
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "startedAt": s.startAt, "matches": n})
}

// lookup resolves the {id} path value, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session, bool) {
	id := r.PathValue("id")
	s.mu.RLock()
	sess, ok := s.matches[id]
	s.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "match not found")
		return nil, false
	}
	sess.touch(time.Now())
	return sess, true
}

// Sweep drops matches untouched for longer than the configured TTL and
// returns how many went. Matches with open WebSocket watchers are kept.
func (s *Server) Sweep(now time.Time) int {
	ttl := s.cfg.MatchTTL
	if ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.matches {
		if sess.idle(now) <= ttl || s.hub.Subscribers(id) > 0 {
			continue
		}
		delete(s.matches, id)
		n++
	}
	return n
}

// RunJanitor sweeps idle matches until ctx is done.
func (s *Server) RunJanitor(ctx context.Context) {
	if s.cfg.MatchTTL <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.MatchTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				s.mu.RLock()
				live := len(s.matches)
				s.mu.RUnlock()
				log.Info().Int("dropped", n).Int("live", live).Msg("Idle matches swept")
			}
		}
	}
}

// publish broadcasts the session's current state with the events of the
// request that changed it. mu must be held.
func (s *Server) publish(sess *session) Snapshot {
	snap := sess.snapshot(sess.events.drain())
	s.hub.Broadcast(sess.id, WSEvent{Type: EventSnapshot, MatchID: sess.id, Data: snap})
	return snap
}

// === Create / Get ===

const (
	PlacementAuto   = "auto"
	PlacementManual = "manual"
)

type createReq struct {
	Placement string `json:"placement"`
	Seed      int64  `json:"seed"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	req := createReq{Placement: PlacementAuto}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad json")
			return
		}
	}
	if req.Placement != PlacementAuto && req.Placement != PlacementManual {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("placement must be %q or %q", PlacementAuto, PlacementManual))
		return
	}
	seed := req.Seed
	if seed == 0 {
		seed = s.cfg.Seed
	}

	events := &eventLog{}
	m := match.New(match.Options{
		PresetOpponent: s.cfg.PresetOpponent,
		MaxAttempts:    s.cfg.MaxAttempts,
		MaxRestarts:    s.cfg.MaxRestarts,
	}, choice.NewRandom(seed), events)

	ctx := r.Context()
	if err := m.DeployComputer(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	com, err := app.Commit(m.Computer.Board)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Placement == PlacementAuto {
		humanSeed := int64(0)
		if seed != 0 {
			humanSeed = seed + 1
		}
		if err := m.DeployHuman(ctx, choice.NewRandom(humanSeed)); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	// setup churn is not interesting to clients
	events.drain()

	sess := &session{id: uuid.NewString(), m: m, secret: com.Secret, root: com.Root, events: events}
	sess.touch(time.Now())
	s.mu.Lock()
	s.matches[sess.id] = sess
	s.mu.Unlock()

	logger.ForMatch(sess.id).Info().Str("placement", req.Placement).Str("root", com.RootHex).Msg("Match created")

	sess.mu.Lock()
	snap := sess.snapshot(nil)
	sess.mu.Unlock()
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	snap := sess.snapshot(nil)
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

// === Place / Attack ===

type placeReq struct {
	Row int             `json:"row"`
	Col int             `json:"col"`
	Dir *game.Direction `json:"dir,omitempty"`
}

func (s *Server) handlePlace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req placeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, game.ErrDirection) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	place := game.Request{Anchor: game.Coordinate{Row: req.Row, Col: req.Col}}
	if req.Dir != nil {
		place.Dir = *req.Dir
	} else if cls, _, ok := sess.m.HumanNext(); ok && cls.Length > 1 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("dir required for a %d-cell vessel", cls.Length))
		return
	}
	_, err := sess.m.PlaceHuman(place)
	switch {
	case err == nil, errors.Is(err, game.ErrInfeasible):
		// an infeasible fleet is reset, which is a normal state change
		snap := s.publish(sess)
		logger.ForMatch(sess.id).Debug().Bool("reset", err != nil).Msg("Vessel placed")
		writeJSON(w, http.StatusOK, snap)
	default:
		s.publish(sess)
		writeError(w, statusFor(err), err.Error())
	}
}

type attackReq struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type attackResp struct {
	Result   match.RoundResult `json:"result"`
	Snapshot Snapshot          `json:"snapshot"`
}

func (s *Server) handleAttack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req attackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.m.PlayRound(r.Context(), game.Coordinate{Row: req.Row, Col: req.Col})
	if err != nil {
		sess.events.drain()
		writeJSON(w, statusFor(err), map[string]any{
			"error": err.Error(),
			"row":   req.Row,
			"col":   req.Col,
		})
		return
	}
	writeJSON(w, http.StatusOK, attackResp{Result: res, Snapshot: s.publish(sess)})
}

// === Commitment / Proof ===

// shotKeys loads or creates the proving keys on first use.
func (s *Server) shotKeys() (*zk.Keys, error) {
	s.keysMu.Lock()
	defer s.keysMu.Unlock()
	if s.keys != nil {
		return s.keys, nil
	}
	keys, err := zk.EnsureKeys(s.cfg.KeysDir)
	if err != nil {
		return nil, err
	}
	s.keys = keys
	return keys, nil
}

// handleCommitment returns the salted root of the computer's board. With
// ?vk=1 it also returns the verifying key, running the setup if needed.
func (s *Server) handleCommitment(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sess.mu.Lock()
	resp := codec.Commitment{RootHex: codec.Hex(sess.root)}
	sess.mu.Unlock()

	if r.URL.Query().Get("vk") == "1" {
		keys, err := s.shotKeys()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if resp.VKB64, err = app.VerifyingKeyB64(keys.VerifyingKey()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type proofResp struct {
	Payload    codec.ShotProofPayload `json:"payload"`
	RootHex    string                 `json:"rootHex"`
	Valid      bool                   `json:"valid"`
	Hit        uint8                  `json:"hit"`
	Consistent bool                   `json:"consistent"`
}

// handleProof proves the outcome of a cell the human already attacked.
// Unattacked cells are refused so the proof cannot leak the board.
func (s *Server) handleProof(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req attackReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	c := game.Coordinate{Row: req.Row, Col: req.Col}
	if !c.InBounds() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %v", game.ErrOutOfBounds, c))
		return
	}

	sess.mu.Lock()
	attacked := sess.m.Human.Log.Contains(c)
	reported := sess.m.Human.Tracking.At(c)
	secret, root := sess.secret, sess.root
	sess.mu.Unlock()
	if !attacked {
		writeError(w, http.StatusConflict, "cell not attacked yet")
		return
	}

	keys, err := s.shotKeys()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	shot, err := app.Shoot(keys, secret, c)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, err := app.VerifyWithRoot(keys.VerifyingKey(), root, shot.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	consistent := (res.Hit == 1) == (reported == game.Hit)
	if !consistent {
		logger.ForMatch(sess.id).Warn().Int("row", c.Row).Int("col", c.Col).Msg("Reported outcome contradicts commitment")
	}
	writeJSON(w, http.StatusOK, proofResp{
		Payload:    shot.Payload,
		RootHex:    codec.Hex(root),
		Valid:      res.Valid,
		Hit:        res.Hit,
		Consistent: consistent,
	})
}

// === CORS ===

func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// In dev we allow any origin. For production, set this to the specific origin(s).
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
