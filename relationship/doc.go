// Package relationship maps numeric affinity scores to named tiers and
// renders per-tier behavioral guidance for prompt assembly. Scores live in
// [-100, 100]; the tier table is validated at construction so every score
// maps to exactly one tier.
package relationship
