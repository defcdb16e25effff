// Package templates renders the HTML dashboard for the arm set.
package templates

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"probebandit/bandit"
)

// Dashboard renders the full dashboard page around the summary table.
func Dashboard(summary bandit.Summary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!doctype html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Probe Bandit Dashboard</title>
<script src="https://unpkg.com/htmx.org@1.9.10"></script>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="bg-gray-100">
<div class="container mx-auto px-4 py-8">
<h1 class="text-2xl font-bold mb-4">Probe Bandit Dashboard</h1>
`); err != nil {
			return err
		}
		if err := SummaryTable(summary).Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</div>\n</body>\n</html>\n")
		return err
	})
}

// SummaryTable renders the per-arm statistics table with aggregate
// totals, one row per arm in rank order.
func SummaryTable(summary bandit.Summary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<table class="min-w-full bg-white rounded shadow">
<thead>
<tr>
<th class="px-4 py-2 text-left">Arm</th>
<th class="px-4 py-2 text-right">Interesting</th>
<th class="px-4 py-2 text-right">Uninteresting</th>
<th class="px-4 py-2 text-right">Runs</th>
<th class="px-4 py-2 text-right">Observed rate</th>
<th class="px-4 py-2 text-right">Posterior mean</th>
<th class="px-4 py-2 text-right">Weight</th>
<th class="px-4 py-2 text-right">Limit</th>
<th class="px-4 py-2 text-left">State</th>
</tr>
</thead>
<tbody>
`); err != nil {
			return err
		}

		for _, row := range summary.Arms {
			_, err := fmt.Fprintf(w, `<tr>
<td class="border px-4 py-2">%s</td>
<td class="border px-4 py-2 text-right">%d</td>
<td class="border px-4 py-2 text-right">%d</td>
<td class="border px-4 py-2 text-right">%d</td>
<td class="border px-4 py-2 text-right">%.4f</td>
<td class="border px-4 py-2 text-right">%.4f</td>
<td class="border px-4 py-2 text-right">%.2f</td>
<td class="border px-4 py-2 text-right">%s</td>
<td class="border px-4 py-2">%s</td>
</tr>
`,
				html.EscapeString(row.Name),
				row.Successes,
				row.Failures,
				row.Runs,
				row.ObservedRate,
				row.PosteriorMean,
				row.Weight,
				html.EscapeString(row.Limit),
				html.EscapeString(string(row.State)),
			)
			if err != nil {
				return err
			}
		}

		_, err := fmt.Fprintf(w, `</tbody>
<tfoot>
<tr>
<td class="border px-4 py-2 font-bold">Total</td>
<td class="border px-4 py-2 text-right font-bold">%d</td>
<td class="border px-4 py-2 text-right font-bold"></td>
<td class="border px-4 py-2 text-right font-bold">%d</td>
<td colspan="5"></td>
</tr>
</tfoot>
</table>
`, summary.TotalSuccesses, summary.TotalRuns)
		return err
	})
}
