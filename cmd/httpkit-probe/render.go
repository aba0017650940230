package main

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gosuri/uitable"
)

// renderStatus formats the status line and headers as an aligned table.
func renderStatus(status int, hdr http.Header) string {
	table := uitable.New()
	table.MaxColWidth = 100
	table.Separator = " "

	table.AddRow("status:", fmt.Sprintf("%d %s", status, http.StatusText(status)))

	keys := make([]string, 0, len(hdr))
	for k := range hdr {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		table.AddRow(k+":", strings.Join(hdr[k], ", "))
	}
	return table.String()
}
