// Package ranking provides relevance scoring for user search with
// calibration support.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	q := ranking.NewQuery("John Smith")
//	score := ranking.ScoreUser(q, ranking.Candidate{
//		Username: "jsmith",
//		Name:     "John",
//		Surname:  "Smith",
//	}, weights)
//
// Calibration:
//
// Weights can be tuned at deploy time through a JSON file loaded at startup.
// Only non-zero values in the file override the defaults. See
// configs/ranking.calibration.json for the default configuration.
package ranking
