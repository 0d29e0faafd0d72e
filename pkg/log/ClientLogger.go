// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package log

import (
	"fmt"
	"strings"

	"github.com/aws/smithy-go/logging"

	"github.com/navwar/bisync/pkg/fs"
)

// ClientLogger forwards AWS client events, such as signed requests and retries, to a logger.
type ClientLogger struct {
	logger fs.Logger
}

func (c ClientLogger) Logf(classification logging.Classification, format string, v ...interface{}) {
	event := fmt.Sprintf(format, v...)
	msg := ""
	details := ""
	if prefix := "Request Signature:\n"; strings.HasPrefix(event, prefix) {
		msg = "Request Signature"
		details = event[len(prefix):]
	} else if prefix := "Request\n"; strings.HasPrefix(event, prefix) {
		msg = "Request"
		details = event[len(prefix):]
	} else if prefix := "Response\n"; strings.HasPrefix(event, prefix) {
		msg = "Response"
		details = event[len(prefix):]
	} else {
		msg = "Client Event"
		details = event
	}
	_ = c.logger.Log(msg, map[string]interface{}{
		"classification": string(classification),
		"details":        details,
	})
}

func NewClientLogger(logger fs.Logger) *ClientLogger {
	return &ClientLogger{logger: logger}
}

var _ logging.Logger = (*ClientLogger)(nil)
