package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpup/ridemap/internal/export"
	"github.com/dpup/ridemap/internal/lib/geo"
	"github.com/dpup/ridemap/internal/lib/hull"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "mapctl",
		Short:        "Geometry helpers for ride map boundaries and routes",
		Long:         `Command line access to the geodesy, ring ordering and KML export used by the map engine. Points are written as lat,lng.`,
		SilenceUsage: true,
	}

	distanceCmd := &cobra.Command{
		Use:   "distance FROM TO",
		Short: "Great-circle distance in meters",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.1f\n", geo.Distance(points[0], points[1]))
			return nil
		},
	}

	bearingCmd := &cobra.Command{
		Use:   "bearing FROM TO",
		Short: "Initial bearing in degrees clockwise from north",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", geo.Bearing(points[0], points[1]))
			return nil
		},
	}

	var bearing, distance float64
	projectCmd := &cobra.Command{
		Use:   "project ORIGIN",
		Short: "Destination point along a bearing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			origin, err := parsePoint(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatPoint(geo.Project(origin, bearing, distance)))
			return nil
		},
	}
	projectCmd.Flags().Float64VarP(&bearing, "bearing", "b", 0, "Bearing in degrees")
	projectCmd.Flags().Float64VarP(&distance, "distance", "d", 0, "Distance in meters")

	var mode string
	ringCmd := &cobra.Command{
		Use:   "ring POINT...",
		Short: "Order boundary points into a closed polygon ring",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := hull.ParseMode(mode)
			if err != nil {
				return err
			}
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			ring, err := hull.Ring(points, m)
			if err != nil {
				return err
			}
			for _, p := range ring {
				fmt.Fprintln(cmd.OutOrStdout(), formatPoint(p))
			}
			return nil
		},
	}
	ringCmd.Flags().StringVarP(&mode, "mode", "m", string(hull.ModeHull), "Ring ordering: hull or insertion")

	var name string
	kmlCmd := &cobra.Command{
		Use:   "kml POINT...",
		Short: "Write points as KML placemarks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := parsePoints(args)
			if err != nil {
				return err
			}
			return export.Points(cmd.OutOrStdout(), name, points)
		},
	}
	kmlCmd.Flags().StringVarP(&name, "name", "n", "Points", "Document name")

	decodeCmd := &cobra.Command{
		Use:   "decode POLYLINE",
		Short: "Decode an encoded polyline into points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := geo.DecodePolyline(args[0])
			if err != nil {
				return err
			}
			for _, p := range points {
				fmt.Fprintln(cmd.OutOrStdout(), formatPoint(p))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "length: %.1f m\n", geo.PolylineLength(points))
			return nil
		},
	}

	rootCmd.AddCommand(distanceCmd, bearingCmd, projectCmd, ringCmd, kmlCmd, decodeCmd)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parsePoint(s string) (geo.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return geo.Point{}, fmt.Errorf("point %q: want lat,lng", s)
	}
	latitude, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	longitude, err := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	p, err := geo.NewPoint(latitude, longitude)
	if err != nil {
		return geo.Point{}, fmt.Errorf("point %q: %w", s, err)
	}
	return p, nil
}

func parsePoints(args []string) ([]geo.Point, error) {
	points := make([]geo.Point, 0, len(args))
	for _, arg := range args {
		p, err := parsePoint(arg)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func formatPoint(p geo.Point) string {
	return fmt.Sprintf("%.6f,%.6f", p.Latitude, p.Longitude)
}
