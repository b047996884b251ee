package layout

import (
	"sort"

	"github.com/tracelens/investigation-engine/pkg/models"
)

// Bank Cluster Layout
//
// Groups accounts by bank (bank_name + IFSC prefix key) and arranges the
// clusters themselves on a grid, with a small internal grid per cluster.
// Useful when the question is "which banks is the money moving through", not
// "which accounts".

const (
	clusterSpacing     = 700
	clusterNodeSpacing = 160
	clusterGridCap     = 4 // max columns inside one cluster
)

// bankKey derives the grouping key for a node. Accounts with no bank
// metadata cluster together under "unknown".
func bankKey(n models.Node) string {
	if n.Metadata == nil {
		return "unknown"
	}
	bank, _ := n.Metadata[models.MetaBankName].(string)
	ifsc, _ := n.Metadata[models.MetaIFSCCode].(string)
	if len(ifsc) >= 4 {
		ifsc = ifsc[:4] // bank code prefix, branch digits are noise
	}
	key := bank + "|" + ifsc
	if key == "|" {
		return "unknown"
	}
	return key
}

// BankCluster positions nodes in per-bank grid clusters.
func BankCluster(nodes []models.Node, links []models.Link, c Container) (Result, error) {
	clusters := make(map[string][]models.Node)
	for _, n := range nodes {
		key := bankKey(n)
		clusters[key] = append(clusters[key], n)
	}

	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Clusters on an outer grid, roughly square.
	outerCols := 1
	for outerCols*outerCols < len(keys) {
		outerCols++
	}

	pos := make(models.PositionMap, len(nodes))
	for idx, key := range keys {
		cluster := clusters[key]
		sort.SliceStable(cluster, func(i, j int) bool {
			ai, aj := cluster[i].Amount(), cluster[j].Amount()
			if ai != aj {
				return ai > aj
			}
			return cluster[i].Label < cluster[j].Label
		})

		originX := float64(idx%outerCols) * clusterSpacing
		originY := float64(idx/outerCols) * clusterSpacing

		innerCols := len(cluster)
		if innerCols > clusterGridCap {
			innerCols = clusterGridCap
		}
		for i, n := range cluster {
			pos[n.ID] = models.Position{
				X: originX + float64(i%innerCols)*clusterNodeSpacing,
				Y: originY + float64(i/innerCols)*clusterNodeSpacing,
			}
		}
	}

	return Result{
		Positions: pos,
		Viewport:  fitViewport(pos, c, treeMinZoom, treeMaxZoom),
	}, nil
}
