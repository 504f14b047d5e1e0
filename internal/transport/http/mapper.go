package http

import (
	"encoding/json"

	"github.com/fileflow/fileflow-server/internal/auth"
	"github.com/fileflow/fileflow-server/internal/core"
	"github.com/fileflow/fileflow-server/internal/proto"
)

// inboundToCore decodes a wire envelope into a core event. A non-nil
// proto.Error means the envelope was understood but rejected; a non-nil
// error means the payload could not be decoded at all.
func inboundToCore(authService *auth.Service, inbound proto.Inbound) (*core.Inbound, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeAuthenticate:
		var data proto.AuthenticateData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}

		userID := data.UserID
		if data.Token != "" {
			claims, err := authService.ValidateToken(data.Token)
			if err != nil {
				return nil, &proto.Error{Code: core.ErrCodeUnauthenticated, Msg: "invalid token"}, nil
			}
			userID = claims.UserID
		}
		if userID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeMalformedEvent, Msg: "token or userId is required"}, nil
		}
		return &core.Inbound{
			Kind:   core.InboundAuthenticate,
			UserID: userID,
		}, nil, nil

	case proto.InboundTypeJoinRoom:
		var data proto.JoinRoomData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		if data.RoomID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeMalformedEvent, Msg: "roomId is required"}, nil
		}
		return &core.Inbound{
			Kind:   core.InboundJoinRoom,
			RoomID: data.RoomID,
		}, nil, nil

	case proto.InboundTypeChatMessage:
		var data proto.ChatMessageData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{
			Kind:    core.InboundChatMessage,
			RoomID:  data.RoomID,
			Content: data.Content,
		}, nil, nil

	case proto.InboundTypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{
			Kind:   core.InboundTyping,
			RoomID: data.RoomID,
		}, nil, nil

	case proto.InboundTypeShareFile:
		var data proto.ShareFileData
		if err := json.Unmarshal(inbound.Data, &data); err != nil {
			return nil, nil, err
		}
		return &core.Inbound{
			Kind:   core.InboundShareFile,
			RoomID: data.RoomID,
			File: &core.FileMeta{
				ID:           data.File.ID,
				OriginalName: data.File.OriginalName,
				Filename:     data.File.Filename,
				Size:         data.File.Size,
				DownloadURL:  data.File.DownloadURL,
			},
		}, nil, nil

	default:
		return nil, &proto.Error{Code: core.ErrCodeMalformedEvent, Msg: "unknown event type"}, nil
	}
}

func userInfoToProto(u core.UserInfo) *proto.UserInfo {
	return &proto.UserInfo{
		ID:     u.ID,
		Name:   u.Name,
		Avatar: u.Avatar,
		Online: u.Online,
	}
}

func messageToProto(m *core.ChatMessage) *proto.MessageInfo {
	return &proto.MessageInfo{
		ID:         m.ID,
		RoomID:     m.RoomID,
		UserID:     m.UserID,
		Content:    m.Content,
		Type:       m.Type,
		FileID:     m.FileID,
		CreatedAt:  m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UserName:   m.UserName,
		UserAvatar: m.UserAvatar,
	}
}

func fileMetaToProto(f *core.FileMeta) *proto.FileInfo {
	return &proto.FileInfo{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		Filename:     f.Filename,
		Size:         f.Size,
		DownloadURL:  f.DownloadURL,
	}
}

// outboundFromEvent converts a core event into its wire representation.
func outboundFromEvent(event core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventConnected:
		return proto.Outbound{
			Type: proto.OutboundTypeConnected,
			User: userInfoToProto(event.User),
		}
	case core.EventHistory:
		messages := make([]proto.MessageInfo, 0, len(event.Messages))
		for i := range event.Messages {
			messages = append(messages, *messageToProto(&event.Messages[i]))
		}
		return proto.Outbound{
			Type:     proto.OutboundTypeHistory,
			RoomID:   event.RoomID,
			Messages: messages,
		}
	case core.EventNewMessage:
		return proto.Outbound{
			Type:    proto.OutboundTypeNewMessage,
			RoomID:  event.RoomID,
			User:    userInfoToProto(event.User),
			Message: messageToProto(event.Message),
		}
	case core.EventUserTyping:
		return proto.Outbound{
			Type:   proto.OutboundTypeUserTyping,
			RoomID: event.RoomID,
			User:   userInfoToProto(event.User),
		}
	case core.EventNewFile:
		return proto.Outbound{
			Type:   proto.OutboundTypeNewFile,
			RoomID: event.RoomID,
			User:   userInfoToProto(event.User),
			File:   fileMetaToProto(event.File),
		}
	case core.EventUserJoined:
		return proto.Outbound{
			Type:   proto.OutboundTypeUserJoined,
			RoomID: event.RoomID,
			User:   userInfoToProto(event.User),
		}
	case core.EventUserLeft:
		return proto.Outbound{
			Type:   proto.OutboundTypeUserLeft,
			RoomID: event.RoomID,
			User:   userInfoToProto(event.User),
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown event"}}
	}
}
