package provisioning

import (
	"encoding/json"
	"fmt"
	"time"
)

// request is the provisioning request published to
// provision/{code}/request.
type request struct {
	DeviceID     string         `json:"deviceId"`
	CustomerCode string         `json:"customerCode"`
	Timestamp    int64          `json:"timestamp"`
	DeviceInfo   map[string]any `json:"deviceInfo"`
}

func newRequest(deviceID, code string, info map[string]any) request {
	if info == nil {
		info = map[string]any{}
	}
	return request{
		DeviceID:     deviceID,
		CustomerCode: code,
		Timestamp:    time.Now().Unix(),
		DeviceInfo:   info,
	}
}

// response is a provisioning response in either of the two wire
// shapes the backend produces: status-based with a nested config
// object, or an approved flag with configuration fields at the root.
type response struct {
	Status       string          `json:"status"`
	Approved     bool            `json:"approved"`
	Reason       string          `json:"reason"`
	CustomerName string          `json:"customerName"`
	Config       json.RawMessage `json:"config"`

	// Root-level configuration for the approved-flag shape.
	StartURL  string `json:"startUrl"`
	BrokerURL string `json:"brokerUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// bindingConfig are the configuration fields an approval carries,
// shared by both wire shapes.
type bindingConfig struct {
	StartURL  string `json:"startUrl"`
	BrokerURL string `json:"brokerUrl"`
	Username  string `json:"username"`
	Password  string `json:"password"`
}

// Binding is the resolved device configuration emitted on approval.
// StartURL is always set; the broker fields fall back to the
// provisioning broker when the response omits them.
type Binding struct {
	StartURL     string
	BrokerURL    string
	Username     string
	Password     string
	CustomerName string
}

// approved reports whether the response grants the binding, in
// either shape.
func (r *response) approved() bool {
	return r.Status == "approved" || r.Approved
}

// binding extracts the configuration from an approval response.
func (r *response) binding() (Binding, error) {
	cfg := bindingConfig{
		StartURL:  r.StartURL,
		BrokerURL: r.BrokerURL,
		Username:  r.Username,
		Password:  r.Password,
	}

	if len(r.Config) > 0 {
		if err := json.Unmarshal(r.Config, &cfg); err != nil {
			return Binding{}, fmt.Errorf("parsing approval config: %w", err)
		}
	}

	if cfg.StartURL == "" {
		return Binding{}, ErrMissingStartURL
	}

	return Binding{
		StartURL:     cfg.StartURL,
		BrokerURL:    cfg.BrokerURL,
		Username:     cfg.Username,
		Password:     cfg.Password,
		CustomerName: r.CustomerName,
	}, nil
}
