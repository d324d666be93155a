package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Message is a single SMS-style notification addressed to a mobile number.
type Message struct {
	Mobile string
	Body   string
}

// Notifier delivers notifications through an external gateway.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes notifications to the application log instead of a
// gateway. It stands in until a real SMS provider is integrated.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier constructs the logging notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the message and reports success.
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if msg.Mobile == "" {
		return fmt.Errorf("notification requires a mobile number")
	}
	n.logger.Info("sms notification",
		zap.String("mobile", msg.Mobile),
		zap.String("body", msg.Body),
	)
	return nil
}

// DeadlineAlert formats the fee deadline reminder body.
func DeadlineAlert(studentName, studentID, feeType string, dueAmount int64, deadline string) string {
	return fmt.Sprintf(
		"FEE ALERT - Student: %s (%s). Fee: %s. Amount due: Rs. %d. Deadline: %s. Please pay before the deadline to avoid late penalties.",
		studentName, studentID, feeType, dueAmount, deadline,
	)
}
