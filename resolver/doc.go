// Package resolver normalizes entity identifiers coming back from model
// output. Models invent variant IDs like "Guard_Angry" or "Extra_Happy_Lv2"
// for entities that already exist; Normalize maps these onto canonical IDs
// so state never fragments across spellings of the same entity.
package resolver
