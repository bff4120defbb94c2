package handler

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/rafaello-cc/levelbot/internal/database"
	"github.com/rafaello-cc/levelbot/internal/database/types"
	"github.com/rafaello-cc/levelbot/internal/guildstate"
	restTypes "github.com/rafaello-cc/levelbot/internal/rest/types"
	"github.com/uptrace/bunrouter"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// MemberHandler answers roster and leaderboard queries.
type MemberHandler struct {
	db     database.Client
	cache  *guildstate.Cache
	logger *zap.Logger
}

// NewMemberHandler creates a new member handler.
func NewMemberHandler(db database.Client, cache *guildstate.Cache, logger *zap.Logger) *MemberHandler {
	return &MemberHandler{
		db:     db,
		cache:  cache,
		logger: logger,
	}
}

// ListMembers returns one guild's roster. Deleted placeholder accounts are
// excluded.
func (h *MemberHandler) ListMembers(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	members := h.cache.Members(guildID)

	entries := make([]restTypes.MemberEntry, 0, len(members))
	for id, info := range members {
		if guildstate.IsDeletedAccountName(info.Name) {
			continue
		}

		entries = append(entries, restTypes.MemberEntry{ID: id, MemberInfo: info})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return bunrouter.JSON(w, entries)
}

// GetMember returns one member's progression record.
func (h *MemberHandler) GetMember(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	memberID, err := strconv.ParseUint(req.Param("memberId"), 10, 64)
	if err != nil || memberID == 0 {
		http.Error(w, "Invalid member id", http.StatusBadRequest)
		return nil
	}

	record, err := h.db.Model().Progression().Get(req.Context(), guildID, memberID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			http.Error(w, "Member not found", http.StatusNotFound)
			return nil
		}

		h.logger.Error("Failed to load progression record", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	return bunrouter.JSON(w, record)
}

// GetLevels returns one page of a guild's leaderboard, sorted by the
// requested field and annotated with cached display names.
func (h *MemberHandler) GetLevels(w http.ResponseWriter, req bunrouter.Request) error {
	guildID, err := guildIDParam(req)
	if err != nil {
		http.Error(w, "Invalid guild id", http.StatusBadRequest)
		return nil
	}

	query := req.URL.Query()
	sortBy := query.Get("sort")
	limit := queryInt(query.Get("limit"), defaultPageSize)
	offset := queryInt(query.Get("offset"), 0)

	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	if offset < 0 {
		offset = 0
	}

	records, err := h.db.Model().Progression().Leaderboard(req.Context(), guildID, sortBy, limit, offset)
	if err != nil {
		h.logger.Error("Failed to load leaderboard", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	total, err := h.db.Model().Progression().CountByGuild(req.Context(), guildID)
	if err != nil {
		h.logger.Error("Failed to count progression records", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return nil
	}

	entries := make([]restTypes.LevelEntry, 0, len(records))

	for _, record := range records {
		entry := restTypes.LevelEntry{
			MemberID:     record.MemberID,
			Level:        record.Level,
			XP:           record.XP,
			MessageCount: record.MessageCount,
			DaysOnServer: record.DaysOnServer,
		}

		if info, ok := h.cache.Member(guildID, record.MemberID); ok {
			if guildstate.IsDeletedAccountName(info.Name) {
				continue
			}

			entry.Name = info.Name
		}

		entries = append(entries, entry)
	}

	return bunrouter.JSON(w, restTypes.LevelsResponse{
		Total:   total,
		Entries: entries,
	})
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}

	return parsed
}

func decodeJSON(req bunrouter.Request, v any) error {
	defer req.Body.Close()

	return sonic.ConfigDefault.NewDecoder(req.Body).Decode(v)
}
