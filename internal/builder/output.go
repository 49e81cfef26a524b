package builder

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/pkg/jsonmessage"
)

// decodeBuildOutput drains the daemon's jsonmessage stream, feeding
// readable lines to sink and returning the built image id.
func decodeBuildOutput(r io.Reader, sink func(string)) (string, error) {
	imageID := ""
	dec := json.NewDecoder(r)
	for {
		var jm jsonmessage.JSONMessage
		if err := dec.Decode(&jm); err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("decode build output: %w", err)
		}
		if jm.Error != nil {
			return "", fmt.Errorf("build: %s", jm.Error.Message)
		}
		if stream := strings.TrimSpace(jm.Stream); stream != "" {
			sink(stream)
		}
		if jm.Aux != nil {
			var result build.Result
			if err := json.Unmarshal(*jm.Aux, &result); err != nil {
				return "", fmt.Errorf("decode build result: %w", err)
			}
			imageID = result.ID
		}
	}
	if imageID == "" {
		return "", fmt.Errorf("daemon reported no image id")
	}
	return imageID, nil
}
