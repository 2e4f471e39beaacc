package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"netinventory/internal/codec"
	"netinventory/internal/domain"
)

// ErrInvalidRequest is returned when a request body fails its shape checks
var ErrInvalidRequest = errors.New("invalid request")

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("devicetype", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseDeviceType(fl.Field().String())
		return ok
	})
	_ = validate.RegisterValidation("status", func(fl validator.FieldLevel) bool {
		_, ok := domain.ParseStatus(fl.Field().String())
		return ok
	})
}

// CreateDeviceRequest carries the fields of a new device. Fields that do not
// apply to Type are ignored.
type CreateDeviceRequest struct {
	Type            string `json:"type" validate:"required,devicetype"`
	Name            string `json:"name" validate:"required,max=128"`
	Status          string `json:"status,omitempty" validate:"omitempty,status"`
	Model           string `json:"model,omitempty" validate:"max=256"`
	SerialInterface bool   `json:"serial_interface,omitempty"`
	Observations    string `json:"observations,omitempty" validate:"max=1024"`

	IPv4       string `json:"ipv4,omitempty"`
	IPv6       string `json:"ipv6,omitempty"`
	MACAddress string `json:"mac_address,omitempty"`

	Ports        int `json:"ports,omitempty" validate:"gte=0"`
	EthPorts     int `json:"eth_ports,omitempty" validate:"gte=0"`
	FastEthPorts int `json:"fast_eth_ports,omitempty" validate:"gte=0"`
	GigaEthPorts int `json:"giga_eth_ports,omitempty" validate:"gte=0"`

	SSID   string `json:"ssid,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

func (r CreateDeviceRequest) record() codec.Record {
	return codec.Record{
		Type:            r.Type,
		Name:            r.Name,
		Status:          r.Status,
		Model:           r.Model,
		SerialInterface: r.SerialInterface,
		Observations:    r.Observations,
		IPv4:            r.IPv4,
		IPv6:            r.IPv6,
		MACAddress:      r.MACAddress,
		Ports:           r.Ports,
		EthPorts:        r.EthPorts,
		FastEthPorts:    r.FastEthPorts,
		GigaEthPorts:    r.GigaEthPorts,
		SSID:            r.SSID,
		UserID:          r.UserID,
	}
}

// ConnectRequest names the peer to connect or disconnect
type ConnectRequest struct {
	Peer string `json:"peer" validate:"required"`
}

// TrafficRequest carries megabytes to add to an endpoint
type TrafficRequest struct {
	UpMB   float64 `json:"up_mb" validate:"gte=0"`
	DownMB float64 `json:"down_mb" validate:"gte=0"`
}

// SuspendRequest carries a manual suspension length
type SuspendRequest struct {
	Minutes int `json:"minutes" validate:"required,gt=0"`
}

// PolicyRequest overrides the configured cap for one run. Zero values fall
// back to the configured policy.
type PolicyRequest struct {
	LimitMB        *float64 `json:"limit_mb,omitempty" validate:"omitempty,gte=0"`
	SuspendMinutes int      `json:"suspend_minutes,omitempty" validate:"omitempty,gt=0"`
}

// Run resolves the request against the configured policy
func (r PolicyRequest) Run(defaults Policy) PolicyRun {
	run := PolicyRun{
		LimitMB:        defaults.LimitMB,
		SuspendMinutes: defaults.SuspendMinutes,
		Trigger:        "manual",
	}
	if r.LimitMB != nil {
		run.LimitMB = *r.LimitMB
	}
	if r.SuspendMinutes != 0 {
		run.SuspendMinutes = r.SuspendMinutes
	}
	return run
}

// ValidateRequest checks a request struct against its validate tags
func ValidateRequest(req any) error {
	if err := validate.Struct(req); err != nil {
		return formatValidationError(err)
	}
	return nil
}

// formatValidationError reports the first failing field
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	e := verrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%w: %s is required", ErrInvalidRequest, field)
	case "devicetype":
		return fmt.Errorf("%w: %s %q is not a known device type", ErrInvalidRequest, field, e.Value())
	case "status":
		return fmt.Errorf("%w: %s %q must be ACTIVE or INACTIVE", ErrInvalidRequest, field, e.Value())
	case "gt", "gte":
		return fmt.Errorf("%w: %s must be %s %s", ErrInvalidRequest, field, e.Tag(), e.Param())
	case "max":
		return fmt.Errorf("%w: %s must not exceed %s characters", ErrInvalidRequest, field, e.Param())
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalidRequest, field, e.Tag())
	}
}
