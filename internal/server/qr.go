package server

import (
	"fmt"
	"net/http"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// roomQRHandler serves a PNG QR code encoding the join link for an existing
// room, for sharing a lobby with players in the same physical room.
func (s *Server) roomQRHandler(w http.ResponseWriter, r *http.Request) {
	code := NormalizeRoomCode(r.URL.Query().Get("code"))
	if code == "" || s.registry.Get(code) == nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	joinURL := fmt.Sprintf("%s/join/%s", s.publicURL, code)
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		zap.L().Error("Failed to encode QR code", zap.String("room", code), zap.Error(err))
		http.Error(w, "failed to generate QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(png); err != nil {
		zap.L().Warn("Failed to write QR response", zap.Error(err))
	}
}
