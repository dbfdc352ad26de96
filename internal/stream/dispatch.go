package stream

import (
	"go.uber.org/zap"

	"forensicwatch/internal/model"
	"forensicwatch/internal/protocol"
)

// dispatchLocked applies one decoded message to the sink. Every message
// leaves a trace except progress frames, which would flood the event log.
func (c *Client) dispatchLocked(msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.StageUpdate:
		if err := c.sink.SetStage(m.Stage, m.Update()); err != nil {
			c.diagnose("Dropped stage update", err)
			return
		}
		c.sink.AppendEvent(model.EventLogEntry{
			Level:   model.LevelInfo,
			Kind:    model.KindStage,
			Stage:   m.Stage,
			Message: m.Summary(),
		})

	case protocol.Progress:
		if err := c.sink.SetStage(m.Stage, model.StageUpdate{Progress: &m.Progress}); err != nil {
			c.diagnose("Dropped progress update", err)
		}

	case protocol.Result:
		c.sink.SetResults(m.Results)
		c.sink.AppendEvent(model.EventLogEntry{
			Level:   model.LevelSuccess,
			Kind:    model.KindResult,
			Message: "Analysis complete",
		})
		c.logger.Info("Results received", zap.String("job_id", string(c.jobID)), zap.Int("bytes", len(m.Results)))
		if c.onResult != nil {
			fn, jobID, results := c.onResult, c.jobID, m.Results
			c.effects = append(c.effects, func() { fn(jobID, results) })
		}

	case protocol.Error:
		c.sink.AppendEvent(model.EventLogEntry{
			Level:   model.LevelError,
			Kind:    model.KindError,
			Message: m.Message,
		})
		c.notifyLocked(Notification{
			Title:       "Processing Error",
			Description: m.Message,
			Severity:    SeverityDestructive,
		})

	case protocol.Unknown:
		c.sink.AppendEvent(model.EventLogEntry{
			Level:   model.LevelInfo,
			Kind:    model.KindInfo,
			Message: m.Text(),
		})
	}
}
