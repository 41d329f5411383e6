package influx

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func init() {
	influxCmd.AddCommand(influxCleanCmd)
}

var influxCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Drop pool metrics loaded by earlier runs",
	Args:  cobra.NoArgs,
	Run:   influxClean,
}

func influxClean(_ *cobra.Command, _ []string) {
	for _, dataset := range datasets {
		if err := influxQuery(fmt.Sprintf("DROP MEASUREMENT \"%s\"", dataset)); err != nil {
			logrus.Fatalf("error dropping [%s] (%v)", dataset, err)
		}
		logrus.Infof("dropped measurement [%s]", dataset)
	}
}

func influxQuery(q string) error {
	params := url.Values{}
	params.Set("db", influxDbDatabase)
	params.Set("q", q)
	if influxDbUsername != "" || influxDbPassword != "" {
		params.Set("u", influxDbUsername)
		params.Set("p", influxDbPassword)
	}
	resp, err := http.PostForm(fmt.Sprintf("%s/query", influxDbUrl), params)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return errors.Errorf("status(%d, %s) %s", resp.StatusCode, resp.Status, string(body))
	}
	return nil
}
