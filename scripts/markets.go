package main

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	"github.com/seaquake/bitsync/internal/config"
)

// This function will query bitget for the tradable futures contracts and store
// them in a csv file. Users can look up this csv file to pick symbols for the
// app configuration. CSV file created at ./examples/markets.csv.
func main() {
	f, err := os.Create("./examples/markets.csv")
	if err != nil {
		log.Error().Err(err).Msg("csv file create")
		return
	}
	w := csv.NewWriter(f)
	defer w.Flush()
	defer f.Close()

	resp, err := http.Get(config.BitgetRESTBaseURL + "/api/v2/mix/market/contracts?productType=usdt-futures")
	if err != nil {
		log.Error().Err(err).Msg("exchange request for contracts")
		return
	}
	contracts := contractsResp{}
	if err = jsoniter.NewDecoder(resp.Body).Decode(&contracts); err != nil {
		log.Error().Err(err).Msg("convert contracts response")
		return
	}
	resp.Body.Close()
	if contracts.Code != config.BitgetSuccessCode {
		log.Error().Str("code", contracts.Code).Str("msg", contracts.Msg).Msg("contracts request rejected")
		return
	}
	for _, record := range contracts.Data {
		if record.Status != "normal" {
			continue
		}
		if err = w.Write([]string{record.Symbol, record.BaseCoin, record.QuoteCoin}); err != nil {
			log.Error().Err(err).Msg("writing contracts to csv")
			return
		}
	}

	fmt.Println("CSV file generated successfully at ./examples/markets.csv")
}

type contractsResp struct {
	Code string              `json:"code"`
	Msg  string              `json:"msg"`
	Data []contractsRespData `json:"data"`
}
type contractsRespData struct {
	Symbol    string `json:"symbol"`
	BaseCoin  string `json:"baseCoin"`
	QuoteCoin string `json:"quoteCoin"`
	Status    string `json:"symbolStatus"`
}
