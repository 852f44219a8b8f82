package widget

import (
	"strconv"

	"github.com/Togather-Foundation/geowidget/internal/address"
	"github.com/Togather-Foundation/geowidget/internal/form"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
)

// UpdateFunc is called whenever the marker has been placed or moved. It is
// the only path from the controller to form fields.
type UpdateFunc func(marker Marker, view View, result geocoding.GeoResult)

// AddressApplier populates an address sub-form.
type AddressApplier interface {
	Apply(region form.Region, address map[string]string) address.Outcome
}

// HostCallback writes the marker position and map zoom to the instance's
// hidden inputs and, when the instance populates addresses, hands the result
// address to the bridge.
func HostCallback(region form.Region, cfg WidgetConfig, bridge AddressApplier) UpdateFunc {
	return func(marker Marker, view View, result geocoding.GeoResult) {
		region.SetHidden(form.LatClass, cfg.InstanceID, formatFloat(marker.Position.Lat))
		region.SetHidden(form.LngClass, cfg.InstanceID, formatFloat(marker.Position.Lng))
		region.SetHidden(form.ZoomClass, cfg.InstanceID, strconv.Itoa(view.Zoom))

		if cfg.PopulateAddress && bridge != nil && len(result.Address) > 0 {
			bridge.Apply(region, result.Address)
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
