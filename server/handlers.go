package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"PlayDeck/core/player"
	"PlayDeck/core/track"
	"PlayDeck/logger"

	"github.com/gorilla/mux"
)

// maxUploadBytes caps a single uploaded file and an imported playlist.
var maxUploadBytes int64 = 256 << 20

// StateHandler returns the engine snapshot.
func (s *Server) StateHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// transport wraps a no-argument engine call and answers with the new state.
func (s *Server) transport(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, s.engine.Status())
	}
}

func (s *Server) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"repeat": s.engine.ToggleRepeat()})
}

func (s *Server) ShuffleHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"shuffle": s.engine.ToggleShuffle()})
}

// SeekRequest moves to a fraction of the current track.
type SeekRequest struct {
	Fraction *float64 `json:"fraction"`
}

func (s *Server) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Fraction == nil {
		http.Error(w, "Expected {\"fraction\": number}", http.StatusBadRequest)
		return
	}
	if err := s.engine.SeekFraction(*req.Fraction); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// VolumeRequest sets the output volume.
type VolumeRequest struct {
	Volume *float64 `json:"volume"`
}

func (s *Server) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		http.Error(w, "Expected {\"volume\": number}", http.StatusBadRequest)
		return
	}
	if err := s.engine.SetVolume(*req.Volume); err != nil {
		if errors.Is(err, player.ErrInvalidVolume) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"volume": s.engine.Volume()})
}

func (s *Server) TracksHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status().Tracks)
}

// UploadTracksHandler adds the MP3 files posted in the multipart field "files".
// Files that fail to load are reported as error notifications.
func (s *Server) UploadTracksHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("Failed to parse multipart form: %v", err), http.StatusBadRequest)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		http.Error(w, "Missing 'files' in form", http.StatusBadRequest)
		return
	}

	sources := make([]track.Source, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxUploadBytes {
			http.Error(w, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		f, err := fh.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
		f.Close()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to read %s: %v", fh.Filename, err), http.StatusBadRequest)
			return
		}
		if int64(len(data)) > maxUploadBytes {
			http.Error(w, fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, maxUploadBytes), http.StatusRequestEntityTooLarge)
			return
		}
		sources = append(sources, track.Bytes(fh.Filename, data))
	}

	added := s.engine.AddSources(r.Context(), s.materializer, sources...)
	writeJSON(w, http.StatusOK, map[string]int{"added": added, "rejected": len(sources) - added})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*track.Track, bool) {
	id := mux.Vars(r)["id"]
	t, ok := s.engine.Track(id)
	if !ok {
		http.Error(w, fmt.Sprintf("Track %s not found", id), http.StatusNotFound)
	}
	return t, ok
}

func (s *Server) RemoveTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.engine.Remove(t)
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) PlayTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.engine.SwitchTo(t)
	writeJSON(w, http.StatusOK, s.engine.Status())
}

// MoveRequest shifts a track by Offset slots.
type MoveRequest struct {
	Offset int `json:"offset"`
}

func (s *Server) MoveTrackHandler(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Expected {\"offset\": integer}", http.StatusBadRequest)
		return
	}
	s.engine.Reorder(t, req.Offset)
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) ExportPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="playlist.json"`)
	if err := s.engine.ExportPlaylist(w); err != nil {
		logger.Warn("failed to export playlist", logger.ErrorField(err))
	}
}

func (s *Server) ImportPlaylistHandler(w http.ResponseWriter, r *http.Request) {
	added := s.engine.ImportPlaylist(io.LimitReader(r.Body, maxUploadBytes))
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}

// WebSocketHandler upgrades the connection and attaches it to the hub.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("websocket upgrade failed", logger.ErrorField(err))
		return
	}

	client := &Client{
		Hub:  s.hub,
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(context.Background(), s.handleMessage)

	logger.Info("websocket connected", logger.String("remote", r.RemoteAddr))
}

// handleMessage feeds browser media reports to the engine.
func (s *Server) handleMessage(ctx context.Context, msg *WSMessage) {
	if msg.Type != MsgTypeReport {
		logger.Debug("ignoring websocket message", logger.String("type", string(msg.Type)))
		return
	}

	var rep Report
	if err := json.Unmarshal(msg.Data, &rep); err != nil {
		logger.Warn("invalid media report", logger.ErrorField(err))
		return
	}
	if ev := s.remote.Apply(rep); ev != "" {
		s.engine.HandleMediaEvent(ev)
	}
}
