// Package events 把问卷完成事件异步发布到 RabbitMQ
package events

import (
	"fmt"
	"time"

	"career-compass/internal/types"

	"github.com/gofrs/uuid/v5"
)

// AssessmentCompleted 一次问卷成功得到推荐后发布的事件，不包含问卷答案
type AssessmentCompleted struct {
	EventID         string    `json:"event_id"`
	ClientID        string    `json:"client_id"`
	Career          string    `json:"career"`
	Recommendations []string  `json:"recommendations"`
	OccurredAt      time.Time `json:"occurred_at"`
}

// NewAssessmentCompleted 用 UUIDv7 作为事件 ID，按时间有序
func NewAssessmentCompleted(clientID string, result types.PredictionResult, now time.Time) (AssessmentCompleted, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return AssessmentCompleted{}, fmt.Errorf("生成事件ID失败: %w", err)
	}
	recs := result.Recommendations
	if recs == nil {
		recs = []string{}
	}
	return AssessmentCompleted{
		EventID:         id.String(),
		ClientID:        clientID,
		Career:          result.Career,
		Recommendations: recs,
		OccurredAt:      now.UTC(),
	}, nil
}
