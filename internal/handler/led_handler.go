// internal/handler/led_handler.go
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"led-relay/internal/discovery"
	"led-relay/internal/service"
	"led-relay/internal/utils"
)

// maxReadTimeout bounds the timeout a caller may request for a device read
const maxReadTimeout = 10 * time.Second

// CommandGateway is the device gateway the LED handler drives
type CommandGateway interface {
	StatusProvider
	SendCommand(cmd string) error
	Reconnect() error
	ReadResponse(timeout time.Duration) (string, bool)
}

// PortLister lists serial ports present on the host
type PortLister interface {
	ListPorts() ([]discovery.PortInfo, error)
}

// LEDHandler handles LED command and device status requests
type LEDHandler struct {
	gateway     CommandGateway
	ports       PortLister
	readTimeout time.Duration
	logger      *utils.ServiceLogger
}

// NewLEDHandler creates a new LED handler. readTimeout is the default for
// device reads when the caller gives none.
func NewLEDHandler(gateway CommandGateway, ports PortLister, readTimeout time.Duration, logger *zap.Logger) *LEDHandler {
	return &LEDHandler{
		gateway:     gateway,
		ports:       ports,
		readTimeout: readTimeout,
		logger:      utils.NewServiceLogger(logger, "led-handler"),
	}
}

// RegisterRoutes registers LED routes
func (h *LEDHandler) RegisterRoutes(router *gin.RouterGroup) {
	led := router.Group("/led")
	{
		led.POST("/command", h.SendCommand)
		led.GET("/status", h.GetStatus)
		led.POST("/connect", h.Connect)
		led.GET("/response", h.ReadResponse)
		led.GET("/ports", h.ListPorts)
	}
}

// CommandRequest is the body of a command request
type CommandRequest struct {
	Command string `json:"command" binding:"required" example:"a"`
}

// StatusResponse reports the device connection
type StatusResponse struct {
	Status    string    `json:"status" example:"connected"`
	Port      string    `json:"port,omitempty" example:"/dev/ttyACM0"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// DeviceResponse carries one line read from the device
type DeviceResponse struct {
	Status    string    `json:"status" example:"success"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// SendCommand sends a single-character command to the device
// @Summary Send LED command
// @Description Validate a single-character command and deliver it to the device, reconnecting and retrying as needed
// @Tags LED
// @Accept json
// @Produce json
// @Param request body CommandRequest true "Command request"
// @Success 200 {object} utils.APIResponse "Command sent"
// @Failure 400 {object} utils.APIResponse "Invalid command"
// @Failure 500 {object} utils.APIResponse "Device unavailable or send failed"
// @Router /api/led/command [post]
func (h *LEDHandler) SendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid command", err)
		return
	}

	err := h.gateway.SendCommand(req.Command)
	switch {
	case err == nil:
		utils.SuccessResponse(c, http.StatusOK, fmt.Sprintf("Command sent: %s", req.Command), nil)
	case errors.Is(err, service.ErrInvalidCommand):
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid command", err)
	case errors.Is(err, service.ErrDeviceUnavailable):
		h.logger.Error("Device unavailable", zap.String("command", req.Command), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Device not connected", err)
	case errors.Is(err, service.ErrSendFailed):
		h.logger.Error("Command delivery failed", zap.String("command", req.Command), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to send command", err)
	default:
		h.logger.Error("Unexpected command error", zap.String("command", req.Command), zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to send command", err)
	}
}

// GetStatus reports the device connection status
// @Summary Device status
// @Description Report whether the device is connected and on which port. Never touches the device.
// @Tags LED
// @Produce json
// @Success 200 {object} StatusResponse "Connection status"
// @Router /api/led/status [get]
func (h *LEDHandler) GetStatus(c *gin.Context) {
	st := h.gateway.Status()

	response := StatusResponse{
		Status:    "disconnected",
		Timestamp: time.Now(),
		RequestID: utils.RequestID(c),
	}
	if st.Connected {
		response.Status = "connected"
		response.Port = st.Address
	}

	c.JSON(http.StatusOK, response)
}

// Connect drops the current connection and reconnects
// @Summary Reconnect device
// @Description Close any existing connection and re-initialize the device
// @Tags LED
// @Produce json
// @Success 200 {object} utils.APIResponse "Device connected"
// @Failure 500 {object} utils.APIResponse "Could not connect"
// @Router /api/led/connect [post]
func (h *LEDHandler) Connect(c *gin.Context) {
	if err := h.gateway.Reconnect(); err != nil {
		h.logger.Error("Reconnect failed", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Could not connect to device", err)
		return
	}

	status := h.gateway.Status()
	utils.SuccessResponse(c, http.StatusOK, "Device connected", status)
}

// ReadResponse reads one line from the device
// @Summary Read device response
// @Description Read one newline-terminated line from the device. Never reconnects.
// @Tags LED
// @Produce json
// @Param timeout query string false "Read timeout as a Go duration" default(1s)
// @Success 200 {object} DeviceResponse "Line read (empty on timeout)"
// @Failure 400 {object} utils.APIResponse "Invalid timeout"
// @Failure 503 {object} utils.APIResponse "Device not connected or read failed"
// @Router /api/led/response [get]
func (h *LEDHandler) ReadResponse(c *gin.Context) {
	timeout := h.readTimeout
	if raw := c.Query("timeout"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxReadTimeout {
			utils.ErrorResponse(c, http.StatusBadRequest,
				fmt.Sprintf("timeout must be a duration between 0 and %s", maxReadTimeout), err)
			return
		}
		timeout = parsed
	}

	response, ok := h.gateway.ReadResponse(timeout)
	if !ok {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "No response available from device", nil)
		return
	}

	c.JSON(http.StatusOK, DeviceResponse{
		Status:    utils.StatusSuccess,
		Response:  response,
		Timestamp: time.Now(),
		RequestID: utils.RequestID(c),
	})
}

// ListPorts lists serial ports on the host
// @Summary List serial ports
// @Description List serial ports with USB details where available
// @Tags LED
// @Produce json
// @Success 200 {object} utils.APIResponse{data=[]discovery.PortInfo} "Ports listed"
// @Failure 500 {object} utils.APIResponse "Enumeration failed"
// @Router /api/led/ports [get]
func (h *LEDHandler) ListPorts(c *gin.Context) {
	ports, err := h.ports.ListPorts()
	if err != nil {
		h.logger.Error("Failed to list serial ports", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list serial ports", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, fmt.Sprintf("Found %d serial ports", len(ports)), ports)
}
