package inscription

import "strings"

// AppProtoCollection is the "p" discriminator for a collection-deploy JSON
// inscription, alongside the configured token protocol discriminator.
const AppProtoCollection = "collection"

// executeCollection validates and records a collection deploy. Each item is
// referenced by the tx hash of the NFT inscription it points at; the item
// must exist, be a verified NFT mint, and be currently held by the
// collection's deployer. No field is written back onto the item records
// themselves — membership lives only on the collection's own Items list,
// looked up again at read time through the collection index.
func (c *Context) executeCollection(insc *Inscription) bool {
	op, ok := jsonString(insc.JSON, "op")
	if !ok || op != OpTokenDeploy {
		return false
	}
	name, ok := jsonString(insc.JSON, "name")
	if !ok || name == "" {
		return false
	}
	description, _ := jsonString(insc.JSON, "description")
	url, _ := jsonString(insc.JSON, "url")
	image, _ := jsonString(insc.JSON, "image")
	icon, _ := jsonString(insc.JSON, "icon")

	rawItems, ok := insc.JSON["items"].([]any)
	if !ok || len(rawItems) == 0 {
		return false
	}

	items := make([]uint64, 0, len(rawItems))
	for _, v := range rawItems {
		tx, ok := v.(string)
		if !ok {
			return false
		}
		itemID, err := c.inscriptionIDByTx(strings.ToLower(tx))
		if err != nil || itemID == 0 {
			return false
		}
		if c.GetNFTHolder(itemID) != insc.From {
			return false
		}
		items = append(items, itemID)
	}

	c.collections = append(c.collections, &Collection{
		InscID:      insc.ID,
		Name:        name,
		Description: description,
		URL:         url,
		Image:       image,
		Icon:        icon,
		Items:       items,
	})
	return true
}
