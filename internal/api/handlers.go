package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mw "github.com/tphakala/hackrf-stream/internal/api/middleware"
	"github.com/tphakala/hackrf-stream/internal/hackrf"
	"github.com/tphakala/hackrf-stream/internal/transfer"
)

// StatusResponse carries a driver status code for every control call
type StatusResponse struct {
	Code    int    `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

// DeviceResponse is returned by GET /api/v1/device
type DeviceResponse struct {
	SessionID string              `json:"session_id"`
	State     string              `json:"state"`
	Mode      string              `json:"mode"`
	Overflow  string              `json:"overflow_policy"`
	Params    transfer.Parameters `json:"parameters"`
	Stats     transfer.Stats      `json:"stats"`
}

// OpenRequest is the body of POST /api/v1/device/open
type OpenRequest struct {
	FD int `json:"fd"`
}

// ParamRequest is the body of PUT /api/v1/params/:name
type ParamRequest struct {
	Value  uint64 `json:"value"`
	Enable bool   `json:"enable"`
}

// RecordingRequest is the body of POST /api/v1/recording/start
type RecordingRequest struct {
	Path string `json:"path"`
}

// DiscardRequest is the body of POST /api/v1/streams/:dir/discard
type DiscardRequest struct {
	Bytes int `json:"bytes"`
}

const directionKey = "direction"

// httpStatus maps a driver status code to the HTTP status of its response
func httpStatus(code hackrf.Error) int {
	switch code {
	case hackrf.Success, hackrf.True:
		return http.StatusOK
	case hackrf.ErrorInvalidParam:
		return http.StatusBadRequest
	case hackrf.ErrorNotFound:
		return http.StatusNotFound
	case hackrf.ErrorBusy:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// respond writes the status response for code
func (s *Server) respond(c echo.Context, code hackrf.Error) error {
	resp := StatusResponse{Code: code.Code(), Name: code.Name(), Message: code.Error()}
	if !code.OK() {
		c.Set(mw.StatusKey, code.Name())
	}
	return c.JSON(httpStatus(code), resp)
}

// badRequest answers a malformed request with the invalid parameter status
func (s *Server) badRequest(c echo.Context, message string) error {
	c.Set(mw.StatusKey, hackrf.ErrorInvalidParam.Name())
	return c.JSON(http.StatusBadRequest, StatusResponse{
		Code:    hackrf.ErrorInvalidParam.Code(),
		Name:    hackrf.ErrorInvalidParam.Name(),
		Message: message,
	})
}

func (s *Server) getDevice(c echo.Context) error {
	session := s.bridge.Session()
	return c.JSON(http.StatusOK, DeviceResponse{
		SessionID: session.ID(),
		State:     session.State().String(),
		Mode:      session.Mode().String(),
		Overflow:  string(session.OverflowPolicy()),
		Params:    s.bridge.Parameters(),
		Stats:     s.bridge.Stats(),
	})
}

func (s *Server) openDevice(c echo.Context) error {
	var req OpenRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}
	return s.respond(c, s.bridge.Open(req.FD))
}

func (s *Server) closeDevice(c echo.Context) error {
	return s.respond(c, s.bridge.Close())
}

func (s *Server) modeHandler(op func() hackrf.Error) echo.HandlerFunc {
	return func(c echo.Context) error {
		return s.respond(c, op())
	}
}

func (s *Server) getParams(c echo.Context) error {
	return c.JSON(http.StatusOK, s.bridge.Parameters())
}

func (s *Server) setParam(c echo.Context) error {
	var req ParamRequest
	if err := c.Bind(&req); err != nil {
		return s.badRequest(c, "invalid request body")
	}

	gain := func(set func(uint32) hackrf.Error) hackrf.Error {
		if req.Value > uint64(^uint32(0)) {
			return hackrf.ErrorInvalidParam
		}
		return set(uint32(req.Value))
	}

	var code hackrf.Error
	switch c.Param("name") {
	case "frequency":
		code = s.bridge.SetFrequency(req.Value)
	case "samplerate":
		code = gain(s.bridge.SetSampleRate)
	case "lnagain":
		code = gain(s.bridge.SetLNAGain)
	case "vgagain":
		code = gain(s.bridge.SetVGAGain)
	case "txvgagain":
		code = gain(s.bridge.SetTxVGAGain)
	case "amp":
		code = s.bridge.SetAmpEnable(req.Enable)
	case "antenna":
		code = s.bridge.SetAntennaEnable(req.Enable)
	default:
		return s.badRequest(c, "unknown parameter "+strconv.Quote(c.Param("name")))
	}
	return s.respond(c, code)
}

func (s *Server) getRecording(c echo.Context) error {
	return c.JSON(http.StatusOK, s.bridge.Recording())
}

func (s *Server) startRecording(c echo.Context) error {
	var req RecordingRequest
	if err := c.Bind(&req); err != nil || req.Path == "" {
		return s.badRequest(c, "path is required")
	}
	return s.respond(c, s.bridge.StartRecording(req.Path))
}

func (s *Server) stopRecording(c echo.Context) error {
	return s.respond(c, s.bridge.StopRecording())
}

// directionMiddleware resolves :dir to a transfer.Direction
func (s *Server) directionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		dir, ok := transfer.ParseDirection(c.Param("dir"))
		if !ok {
			return s.badRequest(c, "stream must be rx or tx")
		}
		c.Set(directionKey, dir)
		return next(c)
	}
}

func direction(c echo.Context) transfer.Direction {
	dir, _ := c.Get(directionKey).(transfer.Direction)
	return dir
}

func (s *Server) getStream(c echo.Context) error {
	return c.JSON(http.StatusOK, s.bridge.StreamStatus(direction(c)))
}

// appendStream queues the raw request body as one buffer
func (s *Server) appendStream(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return s.badRequest(c, "failed to read body")
	}
	if len(body) == 0 {
		return s.badRequest(c, "empty body")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), s.config.AppendTimeout)
	defer cancel()
	return s.respond(c, s.bridge.Append(ctx, direction(c), body))
}

// nextChunk returns the head buffer's unread bytes without consuming them
func (s *Server) nextChunk(c echo.Context) error {
	chunk := s.bridge.Next(direction(c))
	if chunk == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, chunk)
}

func (s *Server) discardStream(c echo.Context) error {
	var req DiscardRequest
	if err := c.Bind(&req); err != nil || req.Bytes < 0 {
		return s.badRequest(c, "bytes must be a non-negative integer")
	}
	n := s.bridge.Discard(direction(c), req.Bytes)
	return c.JSON(http.StatusOK, map[string]int{"discarded": n})
}

func (s *Server) clearStream(c echo.Context) error {
	s.bridge.Clear(direction(c))
	return s.respond(c, hackrf.Success)
}
