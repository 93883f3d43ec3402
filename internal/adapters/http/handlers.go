package http

import (
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

// queryPoint reads the required lat and lon query parameters.
func queryPoint(c *fiber.Ctx) (domain.GeoPoint, bool) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		return domain.GeoPoint{}, false
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	if math.IsNaN(lat) || math.IsNaN(lon) || !p.InRange() {
		return domain.GeoPoint{}, false
	}
	return p, true
}

// pathParam returns the unescaped route parameter; point names are usually
// non-ASCII and arrive percent-encoded.
func pathParam(c *fiber.Ctx, key string) string {
	raw := c.Params(key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// ListPointsHandler returns the points of interest in configured order.
func ListPointsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		set, err := deps.Points.Set(c.UserContext())
		if err != nil {
			return errInternal(c, err.Error())
		}
		resp := paginate(c, set.Points())
		SetLinkHeaders(c, resp.Pagination)
		return c.JSON(resp)
	}
}

// GetPointHandler returns a single point by name.
func GetPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := pathParam(c, "name")
		if name == "" {
			return errBadRequest(c, "point name is required")
		}

		p, err := deps.Points.Get(c.UserContext(), name)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

type pointBody struct {
	Label string   `json:"label"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
}

// PutPointHandler creates or replaces the point named in the path.
func PutPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := pathParam(c, "name")
		if name == "" {
			return errBadRequest(c, "point name is required")
		}

		var body pointBody
		if err := c.BodyParser(&body); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if body.Lat == nil || body.Lon == nil {
			return errBadRequest(c, "lat and lon are required")
		}

		p := &domain.PointOfInterest{
			Name:     name,
			Label:    body.Label,
			Location: domain.GeoPoint{Lat: *body.Lat, Lon: *body.Lon},
		}
		if err := deps.Points.Upsert(c.UserContext(), p); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// DeletePointHandler removes the point named in the path.
func DeletePointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Points.Delete(c.UserContext(), pathParam(c, "name")); err != nil {
			return errFromDomain(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ProximityHandler evaluates alerts for the position in the query string.
func ProximityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current, ok := queryPoint(c)
		if !ok {
			return errBadRequest(c, "valid lat and lon are required")
		}
		threshold := c.QueryFloat("threshold", 0)
		if threshold < 0 || threshold > 50000 {
			return errBadRequest(c, "threshold must be between 0 and 50000 meters")
		}

		eval, err := deps.Proximity.Evaluate(c.UserContext(), current, threshold)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(eval)
	}
}

// MarkersHandler returns the map markers for a position: the position
// itself followed by every point of interest.
func MarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		current, ok := queryPoint(c)
		if !ok {
			return errBadRequest(c, "valid lat and lon are required")
		}

		markers, err := deps.Proximity.Markers(c.UserContext(), current)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(markers)
	}
}

// LocationResponse reports the outcome of a location reading.
type LocationResponse struct {
	Queued       bool                 `json:"queued,omitempty"`
	Announced    bool                 `json:"announced"`
	Announcement *domain.Announcement `json:"announcement,omitempty"`
}

// PostLocationHandler accepts a device reading, evaluates it and announces
// any alerts through the configured sink. With async=true the reading is
// queued for the tracker instead.
func PostLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var update domain.LocationUpdate
		if err := c.BodyParser(&update); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if update.DeviceID == "" {
			return errBadRequest(c, "device_id is required")
		}
		if len(update.DeviceID) > 128 {
			return errBadRequest(c, "device_id too long (max 128 characters)")
		}
		if update.RecordedAt.IsZero() {
			update.RecordedAt = time.Now()
		}

		if c.QueryBool("async") {
			if deps.Queue == nil {
				return errBadRequest(c, "async location handling is not configured")
			}
			if !update.Location.InRange() {
				return errBadRequest(c, "location out of range")
			}
			if err := deps.Queue.PublishLocation(c.UserContext(), &update); err != nil {
				return errInternal(c, err.Error())
			}
			return c.Status(fiber.StatusAccepted).JSON(LocationResponse{Queued: true})
		}

		withDevice(c, update.DeviceID)
		ann, err := deps.Proximity.HandleLocation(c.UserContext(), &update)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(LocationResponse{
			Announced:    ann != nil,
			Announcement: ann,
		})
	}
}

// DeviceLocationHandler returns the latest stored reading for a device.
func DeviceLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		update, err := deps.Proximity.Latest(c.UserContext(), pathParam(c, "id"))
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(update)
	}
}

// DeviceProximityHandler evaluates the latest stored reading for a device.
func DeviceProximityHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		threshold := c.QueryFloat("threshold", 0)
		if threshold < 0 || threshold > 50000 {
			return errBadRequest(c, "threshold must be between 0 and 50000 meters")
		}

		eval, err := deps.Proximity.EvaluateDevice(c.UserContext(), pathParam(c, "id"), threshold)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(eval)
	}
}

// RecentAlertsHandler returns recorded alerts, newest first.
func RecentAlertsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := c.QueryInt("limit", 20)
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		alerts, err := deps.Proximity.RecentAlerts(c.UserContext(), c.Query("device"), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(alerts)
	}
}
