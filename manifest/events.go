package manifest

import (
	"encoding/json"
	"fmt"
)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventJobLoaded is emitted when a job file has been read and rendered.
type EventJobLoaded struct {
	Path        string `json:"path,omitempty"`
	Destination string `json:"destination,omitempty"`
	Packages    int    `json:"packages"`
}

func (e EventJobLoaded) String() string { return jsonString(e) }

// EventIndexWritten is emitted when the repository index has been generated.
type EventIndexWritten struct {
	Path   string `json:"path,omitempty"`
	Signed bool   `json:"signed,omitempty"`
}

func (e EventIndexWritten) String() string { return jsonString(e) }
