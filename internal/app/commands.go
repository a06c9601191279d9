package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"leadify-meeting-orchestrator/internal/meetings"
	"leadify-meeting-orchestrator/internal/types"
)

// Command names accepted by Handle
const (
	CommandSchedule       = "schedule"
	CommandReschedule     = "reschedule"
	CommandCancel         = "cancel"
	CommandEdit           = "edit"
	CommandHistory        = "history"
	CommandRemind         = "remind"
	CommandCalendarAccess = "calendar_access"
)

// Command is one request to the orchestrator
type Command struct {
	Command    string              `json:"command"`
	Lead       types.LeadReference `json:"lead"`
	MeetingID  string              `json:"meeting_id,omitempty"`
	Actor      string              `json:"actor,omitempty"`
	Details    *meetings.Details   `json:"details,omitempty"`
	Patch      *meetings.Patch     `json:"patch,omitempty"`
	Recipients []types.Recipient   `json:"recipients,omitempty"`
}

// ErrorBody describes a failed command
type ErrorBody struct {
	Type    types.ErrorType `json:"type"`
	Message string          `json:"message"`
}

// Response is the outcome of a command
type Response struct {
	Status  string                         `json:"status"`
	Error   *ErrorBody                     `json:"error,omitempty"`
	Result  *meetings.Result               `json:"result,omitempty"`
	History []types.SchedulingHistoryEntry `json:"history,omitempty"`
}

// Handle runs a command. Failures are reported in the response, never
// as a Go error, so both entry points can return them as data.
func (a *App) Handle(ctx context.Context, cmd Command) Response {
	start := time.Now()
	name := strings.ToLower(strings.TrimSpace(cmd.Command))
	logger := a.Logger.With("command", name)

	var (
		res  *meetings.Result
		hist []types.SchedulingHistoryEntry
		err  error
	)
	switch name {
	case CommandSchedule, CommandReschedule:
		if cmd.Details == nil {
			err = types.Errorf(types.ErrorTypeValidationFailed, "%s requires details", name)
			break
		}
		details := *cmd.Details
		if details.Actor == "" {
			details.Actor = cmd.Actor
		}
		if name == CommandSchedule {
			res, err = a.Meetings.Schedule(ctx, cmd.Lead, details)
		} else {
			res, err = a.Meetings.Reschedule(ctx, cmd.Lead, details)
		}
	case CommandCancel:
		if err = requireMeetingID(cmd); err == nil {
			res, err = a.Meetings.Cancel(ctx, cmd.MeetingID, cmd.Actor)
		}
	case CommandEdit:
		if err = requireMeetingID(cmd); err != nil {
			break
		}
		if cmd.Patch == nil {
			err = types.Errorf(types.ErrorTypeValidationFailed, "edit requires a patch")
			break
		}
		patch := *cmd.Patch
		if patch.Actor == "" {
			patch.Actor = cmd.Actor
		}
		res, err = a.Meetings.Edit(ctx, cmd.MeetingID, patch)
	case CommandRemind:
		if err = requireMeetingID(cmd); err == nil {
			res, err = a.Meetings.Remind(ctx, cmd.MeetingID, cmd.Recipients)
		}
	case CommandHistory:
		hist, err = a.History.History(ctx, cmd.Lead)
		if hist == nil && err == nil {
			hist = []types.SchedulingHistoryEntry{}
		}
	case CommandCalendarAccess:
		err = a.CheckCalendarAccess(ctx)
	default:
		err = types.Errorf(types.ErrorTypeValidationFailed, "unknown command %q", cmd.Command)
	}

	a.Metrics.ObserveCommand(name, time.Since(start))

	if err != nil {
		errType := types.TypeOf(err)
		if errType == "" {
			errType = types.ErrorTypePersistenceFailure
		}
		if types.IsFatal(err) {
			logger.Error("command failed", "type", errType, "error", err)
		} else {
			logger.Warn("command rejected", "type", errType, "error", err)
		}
		return Response{Status: "error", Error: &ErrorBody{Type: errType, Message: err.Error()}}
	}

	logger.Info("command completed", "duration", time.Since(start))
	return Response{Status: "ok", Result: res, History: hist}
}

func requireMeetingID(cmd Command) error {
	if strings.TrimSpace(cmd.MeetingID) == "" {
		return types.Errorf(types.ErrorTypeValidationFailed, "%s requires meeting_id", cmd.Command)
	}
	return nil
}

// StatusCode maps a response onto an HTTP status
func StatusCode(resp Response) int {
	if resp.Error == nil {
		return http.StatusOK
	}
	switch resp.Error.Type {
	case types.ErrorTypeValidationFailed, types.ErrorTypeUnresolvableReference:
		return http.StatusBadRequest
	case types.ErrorTypeMeetingNotFound:
		return http.StatusNotFound
	case types.ErrorTypeAlreadyCanceled:
		return http.StatusConflict
	case types.ErrorTypeCalendarProvisioningFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
