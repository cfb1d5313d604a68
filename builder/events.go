package builder

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during a build.
// It is called from worker goroutines and must be safe for concurrent use.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventProgress is emitted each time a worker reports a status message.
type EventProgress struct {
	Message string `json:"message,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

func (e EventProgress) String() string { return jsonString(e) }

// EventPackageBuilt is emitted when a standalone archive has been written.
type EventPackageBuilt struct {
	Package string `json:"package,omitempty"`
	Path    string `json:"path,omitempty"`
	Size    int64  `json:"size"`
}

func (e EventPackageBuilt) String() string { return jsonString(e) }

// EventPackageFolded is emitted when an archive has been appended to the bundle.
type EventPackageFolded struct {
	Package string `json:"package,omitempty"`
	Entry   string `json:"entry,omitempty"`
	Removed bool   `json:"removed,omitempty"`
}

func (e EventPackageFolded) String() string { return jsonString(e) }

// EventPackageFailed is emitted when a package could not be rebuilt or folded.
type EventPackageFailed struct {
	Package string `json:"package,omitempty"`
	Phase   Phase  `json:"phase,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (e EventPackageFailed) String() string { return jsonString(e) }

// EventBundleClosed is emitted when the bundle of a run is complete.
type EventBundleClosed struct {
	Path    string `json:"path,omitempty"`
	Entries int    `json:"entries"`
}

func (e EventBundleClosed) String() string { return jsonString(e) }
