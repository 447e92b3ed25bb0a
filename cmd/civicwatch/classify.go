package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"

	"civicwatch/internal/classifier"
	"civicwatch/pkg/types"

	"github.com/k0kubun/pp/v3"
	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"
)

var classifyCommand = &cli.Command{
	Name:      "classify",
	Usage:     "Classify a local image the way a camera sighting would be",
	ArgsUsage: "<image file>",
	Flags: []cli.Flag{
		&cli.Float64Flag{Name: "lat", Usage: "Latitude sent with the image"},
		&cli.Float64Flag{Name: "lng", Usage: "Longitude sent with the image"},
	},
	Action: func(c *cli.Context) error {
		path := c.Args().First()
		if path == "" {
			return fmt.Errorf("image file is required")
		}

		// Only the classifier settings matter here, so the full validation is skipped.
		cfg := new(types.Config)
		if err := envconfig.Process(c.String("env-prefix"), cfg); err != nil {
			return fmt.Errorf("process environment config: %w", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}

		dataURI := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))

		vision, err := classifier.New(classifierConfig(cfg))
		if err != nil {
			return err
		}

		result, err := vision.Classify(context.Background(), dataURI, types.Location{
			Lat: c.Float64("lat"),
			Lng: c.Float64("lng"),
		})
		if err != nil {
			return fmt.Errorf("failed to classify image: %w", err)
		}

		pp.Println(result)

		return nil
	},
}
