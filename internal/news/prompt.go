package news

import (
	"fmt"
	"strings"
)

// Predefined feed categories.
const (
	CategoryHeadlines = "À la une"
	CategoryShonen    = "Shonen Jump & Co"
	CategorySeinen    = "Seinen / Adulte"
	CategoryAnime     = "Saison Anime Actuelle"
	CategoryIndustry  = "Industrie & Japon"
	CategoryFavorites = "Mes Favoris"
)

// Categories lists the feed categories in display order.
var Categories = []string{
	CategoryHeadlines,
	CategoryShonen,
	CategorySeinen,
	CategoryAnime,
	CategoryIndustry,
	CategoryFavorites,
}

var briefs = map[string]string{
	CategoryHeadlines: "Dernières actualités majeures manga et anime (Japon/France) et sujets tendances sur X (Twitter).",
	CategoryShonen:    "News Shonen Jump, Kodansha, nouveautés shonen et leaks fiables.",
	CategorySeinen:    "News Seinen, nouveautés adultes, Berserk, Vinland Saga.",
	CategoryAnime:     "Sorties épisodes animes saison actuelle, Crunchyroll, Netflix, réactions fans.",
	CategoryIndustry:  "Ventes manga Oricon, annonces éditeurs, industrie animation.",
}

// Brief returns the search subject for topic. Free-form topics get a generic brief.
func Brief(topic string) string {
	if b, ok := briefs[topic]; ok {
		return b
	}
	return "Actualités concernant : " + topic
}

const promptTemplate = `Tu es le moteur d'actualités de "MangaPulse". Recherche sur le web.
Sources prioritaires : Manga-News, ANN, Crunchyroll, comptes officiels sur X (Twitter), posts viraux ou importants sur X (Twitter) concernant le manga/anime.

Sujet : %s

Génère %d news pertinentes et distinctes.

Format de réponse attendu :
Renvoie UNIQUEMENT un tableau JSON brut, sans texte autour et sans bloc de code Markdown.
Chaque objet du tableau doit avoir cette structure exacte :
{
  "title": "Titre court et percutant (Français)",
  "summary": "Résumé informatif (max 200 caractères, Français)",
  "tags": ["Tag1", "Tag2"],
  "date": "Date relative (ex: Il y a 2h)",
  "imageUrl": "URL directe de l'image de l'article si trouvée, sinon null",
  "sourceUrl": "URL de l'article source ou du post X (Twitter) si trouvée, sinon null"
}`

// Prompt builds the provider request asking for count items about topic.
func Prompt(topic string, count int) string {
	return strings.TrimSpace(fmt.Sprintf(promptTemplate, Brief(topic), count))
}
