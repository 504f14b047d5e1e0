package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/fileflow/fileflow-server/internal/service/files"
	"github.com/fileflow/fileflow-server/internal/store"
)

// RoomHandlers provides HTTP handlers for room management endpoints.
type RoomHandlers struct {
	store       store.Store
	fileService *files.Service
	log         *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(st store.Store, fileService *files.Service, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		store:       st,
		fileService: fileService,
		log:         logger,
	}
}

// CreateRoomRequest represents the room creation request body.
type CreateRoomRequest struct {
	Name        string `json:"name" binding:"required,max=64"`
	Description string `json:"description" binding:"max=256"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id"`
	IsActive    bool   `json:"is_active"`
	MemberCount int    `json:"member_count"`
	CreatedAt   string `json:"created_at"`
}

// MemberResponse represents a room member in API responses.
type MemberResponse struct {
	UserResponse
	IsAdmin  bool   `json:"is_admin"`
	JoinedAt string `json:"joined_at"`
}

func roomToResponse(r *store.Room) RoomResponse {
	return RoomResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		IsActive:    r.IsActive,
		MemberCount: r.MemberCount,
		CreatedAt:   r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// roomParam parses the :roomId path parameter. On failure the error response
// has already been written.
func (h *RoomHandlers) roomParam(c *gin.Context) (int64, bool) {
	roomID, err := strconv.ParseInt(c.Param("roomId"), 10, 64)
	if err != nil {
		h.log.Debug().Str("room_id", c.Param("roomId")).Msg("invalid room id")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid room id"})
		return 0, false
	}
	return roomID, true
}

// requireMember checks that uid belongs to roomID. On failure the error
// response has already been written.
func (h *RoomHandlers) requireMember(c *gin.Context, roomID, uid int64) bool {
	ok, err := h.store.IsMember(c.Request.Context(), roomID, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", uid).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return false
	}
	if !ok {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "not a room member"})
		return false
	}
	return true
}

// Create handles room creation. The creator becomes the owner and an admin
// member.
// POST /api/rooms
func (h *RoomHandlers) Create(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	room, err := h.store.CreateRoom(c.Request.Context(), req.Name, req.Description, uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to create room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	// The creator is added as an admin member by the store.
	room.MemberCount = 1

	h.log.Info().Int64("room_id", room.ID).Int64("owner_id", uid).Str("name", room.Name).Msg("room created")
	c.JSON(http.StatusCreated, roomToResponse(room))
}

// List handles listing rooms the authenticated user belongs to.
// GET /api/rooms
func (h *RoomHandlers) List(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}

	rooms, err := h.store.ListUserRooms(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list rooms")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]RoomResponse, 0, len(rooms))
	for _, r := range rooms {
		response = append(response, roomToResponse(r))
	}
	c.JSON(http.StatusOK, response)
}

// Get handles fetching one room the user belongs to.
// GET /api/rooms/:roomId
func (h *RoomHandlers) Get(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	room, err := h.store.GetRoomByID(c.Request.Context(), roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
			return
		}
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to load room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, roomToResponse(room))
}

// ListMembers handles listing a room's members.
// GET /api/rooms/:roomId/members
func (h *RoomHandlers) ListMembers(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	members, err := h.store.ListMembers(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		response = append(response, MemberResponse{
			UserResponse: userToResponse(&m.User),
			IsAdmin:      m.IsAdmin,
			JoinedAt:     m.JoinedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, response)
}

// InviteRequest represents the room invite request body.
type InviteRequest struct {
	Email string `json:"email" binding:"required"`
}

// Invite handles inviting a user into a room by email. Only room admins may
// invite. The invited user becomes a member immediately and receives a
// notification.
// POST /api/rooms/:roomId/invite
func (h *RoomHandlers) Invite(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}

	var req InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid invite request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	members, err := h.store.ListMembers(ctx, roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list members")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	isAdmin := false
	for _, m := range members {
		if m.User.ID == uid && m.IsAdmin {
			isAdmin = true
			break
		}
	}
	if !isAdmin {
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "only room admins can invite"})
		return
	}

	invitee, err := h.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "user not found"})
		return
	}

	already, err := h.store.IsMember(ctx, roomID, invitee.ID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to check membership")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	if already {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user is already a member"})
		return
	}

	if err := h.store.AddMember(ctx, roomID, invitee.ID, false); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", invitee.ID).Msg("failed to add member")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	if room, err := h.store.GetRoomByID(ctx, roomID); err == nil {
		refID := roomID
		_ = h.store.CreateNotification(ctx, &store.Notification{
			UserID:  invitee.ID,
			Type:    "room_invite",
			Content: fmt.Sprintf("You were added to room %q", room.Name),
			RefID:   &refID,
		})
	}

	h.log.Info().Int64("room_id", roomID).Int64("invited_user_id", invitee.ID).Int64("by_user_id", uid).Msg("user invited to room")
	c.JSON(http.StatusOK, gin.H{"message": "user invited"})
}

// Leave handles the authenticated user leaving a room.
// DELETE /api/rooms/:roomId/members/me
func (h *RoomHandlers) Leave(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	if err := h.store.RemoveMember(c.Request.Context(), roomID, uid); err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Int64("user_id", uid).Msg("failed to leave room")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Int64("room_id", roomID).Int64("user_id", uid).Msg("user left room")
	c.JSON(http.StatusOK, gin.H{"message": "left room"})
}

// ListMessages handles loading recent room history via REST.
// GET /api/rooms/:roomId/messages?limit=N
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 200 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = parsed
	}

	messages, err := h.store.ListRoomMessages(c.Request.Context(), roomID, limit)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		item := gin.H{
			"id":           m.ID,
			"room_id":      m.RoomID,
			"user_id":      m.UserID,
			"content":      m.Content,
			"message_type": string(m.Type),
			"created_at":   m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			"user_name":    m.UserName,
			"user_avatar":  m.UserAvatar,
		}
		if m.FileID != nil {
			item["file_id"] = *m.FileID
		}
		response = append(response, item)
	}
	c.JSON(http.StatusOK, response)
}

// ListFiles handles listing files shared into a room.
// GET /api/rooms/:roomId/files
func (h *RoomHandlers) ListFiles(c *gin.Context) {
	uid, ok := currentUserID(c, h.log)
	if !ok {
		return
	}
	roomID, ok := h.roomParam(c)
	if !ok {
		return
	}
	if !h.requireMember(c, roomID, uid) {
		return
	}

	fileList, err := h.fileService.ListRoomFiles(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Int64("room_id", roomID).Msg("failed to list room files")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	response := make([]FileResponse, 0, len(fileList))
	for _, f := range fileList {
		response = append(response, fileToResponse(f))
	}
	c.JSON(http.StatusOK, response)
}
