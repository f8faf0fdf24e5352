/*
Package handler provides HTTP handler functions for inspecting the space and issuing media credentials.
*/
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hzspace/internal/pkg/auth/media"
	"hzspace/internal/pkg/errs"
	"hzspace/internal/pkg/logx"
	"hzspace/internal/pkg/req"
	"hzspace/internal/pkg/resp"
)

// snapshotTimeout bounds how long a listing waits for the hub event loop.
const snapshotTimeout = 2 * time.Second

// HandleListRooms returns a read-only summary of every live room.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), snapshotTimeout)
		defer cancel()

		summaries, err := deps.Hub.Snapshot(ctx)
		if err != nil {
			logx.Warn("Room listing failed.", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrSpaceUnavailable))
			return
		}

		resp.RespondSuccess(w, r, summaries)
	}
}

type MediaTokenInput struct {
	// ChannelName is the audio/video channel to join, usually the room id.
	ChannelName string `json:"channelName" validate:"required,max=64"`
	// UID identifies the participant inside the channel, usually the session id.
	UID string `json:"uid" validate:"required,max=64"`
}

type MediaTokenOutput struct {
	Token       string `json:"token"`
	AppID       string `json:"appId"`
	ChannelName string `json:"channelName"`
	UID         string `json:"uid"`
	ExpiresAt   int64  `json:"expiresAt"`
}

// HandleIssueMediaToken signs a short-lived credential for the external audio/video channel.
func HandleIssueMediaToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input MediaTokenInput

		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, err := deps.Media.Issue(input.ChannelName, input.UID)
		if errors.Is(err, media.ErrEmptyChannel) || errors.Is(err, media.ErrEmptyUser) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}
		if err != nil {
			logx.Error(err, "Failed to issue media token", "channel", input.ChannelName)
			resp.RespondError(w, r, errs.NewError(errs.ErrMediaTokenFailed, input.ChannelName))
			return
		}

		resp.RespondSuccess(w, r, MediaTokenOutput{
			Token:       token.Value,
			AppID:       deps.Media.AppID(),
			ChannelName: input.ChannelName,
			UID:         input.UID,
			ExpiresAt:   token.ExpiresAt.Unix(),
		})
	}
}
