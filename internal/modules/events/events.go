package events

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sidestreets/core/internal/models"
	"github.com/sidestreets/core/internal/pkg/pagination"
	"github.com/sidestreets/core/internal/pkg/response"
	"gorm.io/gorm"
)

// Newsletter kinds: tag editions select events by tag overlap across the
// tag columns, neighbourhood editions by area.
const (
	KindTag           = "tag"
	KindNeighbourhood = "neighbourhood"
)

const (
	defaultLimit    = 10
	maxLimit        = 50
	minDedupeFetch  = 20
	dedupeFetchMult = 3
)

// PreviewQuery selects candidate events for one newsletter edition.
type PreviewQuery struct {
	Kind       string
	Tags       []string
	Areas      []string
	FutureOnly bool
	Limit      int
	Dedupe     bool
}

type Service struct{ db *gorm.DB }

func NewService(db *gorm.DB) *Service { return &Service{db: db} }

// Preview returns up to Limit events for an edition, soonest first. When
// deduplication is on, it overfetches so that dropping repeats still
// leaves enough rows to fill the page.
func (s *Service) Preview(q PreviewQuery) ([]models.EventModel, error) {
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}

	tx := s.db.Model(&models.EventModel{})

	switch q.Kind {
	case KindTag:
		var conds []string
		var args []interface{}
		for _, tag := range q.Tags {
			// Tags are stored as JSON arrays, so a quoted needle only
			// matches whole entries.
			needle := "%" + `"` + tag + `"` + "%"
			conds = append(conds, "(vibes_tags LIKE ? OR event_types LIKE ? OR target_audiences LIKE ?)")
			args = append(args, needle, needle, needle)
		}
		if len(conds) > 0 {
			tx = tx.Where(strings.Join(conds, " OR "), args...)
		}
	case KindNeighbourhood:
		if len(q.Areas) > 0 {
			tx = tx.Where("location_neighbourhood IN ?", q.Areas)
		}
	}

	if q.FutureOnly {
		now := time.Now()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		tx = tx.Where("start_date >= ?", today)
	}

	fetch := q.Limit
	if q.Dedupe {
		fetch = q.Limit * dedupeFetchMult
		if fetch < minDedupeFetch {
			fetch = minDedupeFetch
		}
	}

	var items []models.EventModel
	if err := tx.Order("start_date ASC").Limit(fetch).Find(&items).Error; err != nil {
		return nil, err
	}

	if q.Dedupe {
		items = dedupe(items)
	}
	if len(items) > q.Limit {
		items = items[:q.Limit]
	}
	return items, nil
}

// dedupe drops events repeating an earlier title (case-insensitive) or
// an earlier venue+title pair, keeping first occurrence order.
func dedupe(items []models.EventModel) []models.EventModel {
	seenTitle := make(map[string]bool, len(items))
	seenVenueTitle := make(map[string]bool, len(items))
	out := items[:0]

	for _, ev := range items {
		title := strings.ToLower(strings.TrimSpace(ev.Title))
		venueTitle := strings.ToLower(strings.TrimSpace(ev.VenueName)) + "\x00" + title
		if seenTitle[title] || seenVenueTitle[venueTitle] {
			continue
		}
		seenTitle[title] = true
		seenVenueTitle[venueTitle] = true
		out = append(out, ev)
	}
	return out
}

// List returns events for the admin dashboard, soonest first.
func (s *Service) List(q pagination.Query, area string) ([]models.EventModel, response.Pagination, error) {
	tx := s.db.Model(&models.EventModel{}).Order("start_date ASC")
	if area != "" {
		tx = tx.Where("location_neighbourhood = ?", area)
	}
	var items []models.EventModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(api *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := api.Group("/events")
	g.GET("/preview", h.preview)

	a := g.Group("", authMW)
	a.GET("", h.list)
}

// GET /api/events/preview?kind=&tags=&areas=&future=&limit=&dedupe=
func (h *Handler) preview(c *gin.Context) {
	q := PreviewQuery{
		Kind:       c.DefaultQuery("kind", KindTag),
		Tags:       splitParam(c.Query("tags")),
		Areas:      splitParam(c.Query("areas")),
		FutureOnly: c.DefaultQuery("future", "true") != "false",
		Dedupe:     c.DefaultQuery("dedupe", "true") != "false",
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			q.Limit = v
		}
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	switch q.Kind {
	case KindTag:
		if len(q.Tags) == 0 {
			response.BadRequest(c, "tags is required for tag previews")
			return
		}
	case KindNeighbourhood:
		if len(q.Areas) == 0 {
			response.BadRequest(c, "areas is required for neighbourhood previews")
			return
		}
	default:
		response.BadRequest(c, "kind must be tag or neighbourhood")
		return
	}

	items, err := h.svc.Preview(q)
	if err != nil {
		response.InternalError(c, "could not load events")
		return
	}
	response.Data(c, gin.H{"data": items})
}

// GET /api/events?page=&size=&area=
func (h *Handler) list(c *gin.Context) {
	q := pagination.FromContext(c)
	items, pag, err := h.svc.List(q, c.Query("area"))
	if err != nil {
		response.InternalError(c, "could not list events")
		return
	}
	response.Paged(c, items, pag)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
