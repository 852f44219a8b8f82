package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Togather-Foundation/geowidget/internal/config"
	"github.com/Togather-Foundation/geowidget/internal/geocoding"
	"github.com/Togather-Foundation/geowidget/internal/validation"
	"github.com/spf13/cobra"
)

type geocodeOptions struct {
	serviceURL   string
	countryCodes string
	viewbox      string
	zoom         int
	format       string
}

func newGeocodeCmd(g *globalOptions) *cobra.Command {
	opts := &geocodeOptions{}
	cmd := &cobra.Command{
		Use:   "geocode",
		Short: "Query the configured geocoding service",
		Long: `Run forward or reverse lookups through the same client, rate limiter
and result normalization the map widget uses.

Examples:
  geowidget geocode search "Brandenburger Tor" --countrycodes de
  geowidget geocode reverse 52.5163 13.3777 --zoom 18 --format text`,
	}
	cmd.PersistentFlags().StringVar(&opts.serviceURL, "service-url", "", "Nominatim base URL (default: GEOCODING_SERVICE_URL)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "json", "output format (json, text)")

	search := &cobra.Command{
		Use:   "search <query>",
		Short: "Resolve an address or place name to coordinates",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateCountryCodes(opts.countryCodes); err != nil {
				return err
			}
			if err := validation.ValidateViewbox(opts.viewbox); err != nil {
				return err
			}
			d, err := opts.dispatcher(cmd, g, geocoding.Filters{CountryCodes: opts.countryCodes, Viewbox: opts.viewbox})
			if err != nil {
				return err
			}
			results, err := d.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), opts.format, results)
		},
	}
	search.Flags().StringVar(&opts.countryCodes, "countrycodes", "", "comma-separated ISO 3166-1 alpha-2 codes")
	search.Flags().StringVar(&opts.viewbox, "viewbox", "", "preferred area as x1,y1,x2,y2")

	reverse := &cobra.Command{
		Use:   "reverse <lat> <lng>",
		Short: "Resolve coordinates to the nearest address",
		Long: `Resolve coordinates to the nearest address.

Put -- before the coordinates when the latitude is negative:
  geowidget geocode reverse -- -33.8568 151.2153`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coord, err := parseCoordinate(args[0], args[1])
			if err != nil {
				return err
			}
			d, err := opts.dispatcher(cmd, g, geocoding.Filters{})
			if err != nil {
				return err
			}
			results, err := d.Reverse(cmd.Context(), coord, opts.zoom)
			if err != nil {
				return err
			}
			return writeResults(cmd.OutOrStdout(), opts.format, results)
		},
	}
	reverse.Flags().IntVar(&opts.zoom, "zoom", 18, "address detail level (0-18)")

	cmd.AddCommand(search, reverse)
	return cmd
}

func (o *geocodeOptions) dispatcher(cmd *cobra.Command, g *globalOptions, filters geocoding.Filters) (*geocoding.Dispatcher, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if o.serviceURL != "" {
		if err := validation.ValidateServiceURL(o.serviceURL, "service-url"); err != nil {
			return nil, err
		}
	}
	provider := geocoding.NewProviders(cfg.Geocoding).For(o.serviceURL)
	return geocoding.NewDispatcher(provider, filters, config.NewLoggerTo(cmd.ErrOrStderr(), cfg.Logging)), nil
}

func parseCoordinate(lat, lng string) (geocoding.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geocoding.Coordinate{}, fmt.Errorf("invalid latitude %q", lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return geocoding.Coordinate{}, fmt.Errorf("invalid longitude %q", lng)
	}
	return geocoding.Coordinate{Lat: la, Lng: ln}, nil
}

func writeResults(out io.Writer, format string, results []geocoding.GeoResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	case "text":
		for i, r := range results {
			fmt.Fprintf(out, "%d. %s (%s)\n", i+1, r.Label, r.Coordinate)
		}
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json or text)", format)
	}
}
