package api

import (
	"errors"
	"net/http"

	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/device"
	"github.com/trevor-gituru/wireguard-relay-api/internal/relay/registry"
	apperrors "github.com/trevor-gituru/wireguard-relay-api/internal/shared/errors"
	"github.com/trevor-gituru/wireguard-relay-api/pkg/api"
)

var errMissingSerial = errors.New("serial path parameter is empty")

// registerDeviceHandler handles device registration requests
func (s *Server) registerDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		requestID := GetRequestID(ctx)
		op := logger.StartOp(ctx, "registerDeviceHandler")

		var req api.RegisterRequest
		if err := ParseJSONRequest(r, &req); err != nil {
			op.Fail(err, "failed to parse register request")
			_ = WriteValidationError(w, err, requestID)
			return
		}

		if err := ValidateRegisterRequest(&req); err != nil {
			op.Fail(err, "invalid register request")
			_ = WriteValidationError(w, err, requestID)
			return
		}

		reg, err := s.devices.Register(ctx, &device.RegisterRequest{
			Serial:    req.Serial,
			PublicKey: req.PublicKey,
		})
		if err != nil {
			op.Fail(err, "registration failed")
			WriteErrorResponse(w, r, err)
			return
		}

		response := api.RegisterResponse{
			Serial:         reg.Device.Serial,
			Address:        reg.Device.Address,
			RelayPublicKey: reg.RelayPublicKey,
			RelayEndpoint:  reg.RelayEndpoint,
			RelayPort:      reg.RelayPort,
			RelaySubnet:    reg.RelaySubnet,
			RegisteredAt:   reg.Device.RegisteredAt,
		}

		if err := WriteSuccess(w, response); err != nil {
			op.Fail(err, "failed to encode register response")
			return
		}
		op.Complete("device registered", "serial", reg.Device.Serial, "address", reg.Device.Address)
	}
}

// deregisterDeviceHandler handles device removal requests
func (s *Server) deregisterDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		requestID := GetRequestID(ctx)
		op := logger.StartOp(ctx, "deregisterDeviceHandler")

		serial := r.PathValue("serial")
		if serial == "" {
			op.Fail(errMissingSerial, "missing serial in request path")
			_ = WriteErrorWithRequestID(w, http.StatusBadRequest, apperrors.ErrCodeValidation, "serial is required", requestID)
			return
		}

		result, err := s.devices.Deregister(ctx, serial)
		if err != nil {
			op.Fail(err, "deregistration failed")
			WriteErrorResponse(w, r, err)
			return
		}

		response := api.DeregisterResponse{
			Serial:  result.Device.Serial,
			Address: result.Device.Address,
			Warning: result.Warning,
		}

		if err := WriteSuccess(w, response); err != nil {
			op.Fail(err, "failed to encode deregister response")
			return
		}
		op.Complete("device deregistered", "serial", serial)
	}
}

// listDevicesHandler handles device listing requests
func (s *Server) listDevicesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		op := logger.StartOp(ctx, "listDevicesHandler")

		devices, err := s.devices.List(ctx)
		if err != nil {
			op.Fail(err, "failed to list devices")
			WriteErrorResponse(w, r, err)
			return
		}

		response := api.DeviceListResponse{
			Devices: make([]api.DeviceInfo, len(devices)),
			Count:   len(devices),
		}
		for i, d := range devices {
			response.Devices[i] = deviceInfo(d)
		}

		if err := WriteSuccess(w, response); err != nil {
			op.Fail(err, "failed to encode device list response")
			return
		}
		op.Complete("devices listed", "count", len(devices))
	}
}

// getDeviceHandler handles individual device lookups
func (s *Server) getDeviceHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		requestID := GetRequestID(ctx)
		op := logger.StartOp(ctx, "getDeviceHandler")

		serial := r.PathValue("serial")
		if serial == "" {
			op.Fail(errMissingSerial, "missing serial in request path")
			_ = WriteErrorWithRequestID(w, http.StatusBadRequest, apperrors.ErrCodeValidation, "serial is required", requestID)
			return
		}

		record, err := s.devices.Get(ctx, serial)
		if err != nil {
			op.Fail(err, "failed to get device")
			WriteErrorResponse(w, r, err)
			return
		}

		if err := WriteSuccess(w, deviceInfo(record)); err != nil {
			op.Fail(err, "failed to encode device response")
			return
		}
		op.Complete("device retrieved", "serial", serial)
	}
}

// reconcileHandler triggers a reconciliation pass over the live interface
func (s *Server) reconcileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := GetLogger(ctx)
		op := logger.StartOp(ctx, "reconcileHandler")

		result, err := s.devices.Reconcile(ctx)
		if err != nil {
			op.Fail(err, "reconciliation failed")
			WriteErrorResponse(w, r, err)
			return
		}

		response := api.ReconcileResponse{
			PeersAdded:   result.PeersAdded,
			PeersRemoved: result.PeersRemoved,
			InSync:       result.InSync,
			AddedSerials: result.AddedSerials,
			RemovedKeys:  result.RemovedKeys,
		}

		if err := WriteSuccess(w, response); err != nil {
			op.Fail(err, "failed to encode reconcile response")
			return
		}
		op.Complete("reconciliation finished", "peers_added", result.PeersAdded, "peers_removed", result.PeersRemoved)
	}
}

func deviceInfo(d *registry.Device) api.DeviceInfo {
	return api.DeviceInfo{
		Serial:       d.Serial,
		PublicKey:    d.PublicKey,
		Address:      d.Address,
		RegisteredAt: d.RegisteredAt,
	}
}
