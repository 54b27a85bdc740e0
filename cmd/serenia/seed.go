package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/retrieval"
	"github.com/serenlab/serenia/internal/store"
)

var seedContent = []store.WellnessContent{
	{
		Title:    "Respiración 4-7-8",
		Body:     "Inhala por la nariz contando hasta 4, sostén el aire contando hasta 7 y exhala lentamente por la boca contando hasta 8. Repite el ciclo cuatro veces. Este ejercicio calma el sistema nervioso y es útil ante la ansiedad o antes de dormir.",
		Category: "anxiety",
		Tags:     []string{"respiración", "ansiedad", "calma"},
	},
	{
		Title:    "Oración de entrega",
		Body:     "Señor, pongo en tus manos lo que hoy me pesa. Dame la serenidad para aceptar lo que no puedo cambiar y la confianza de saber que caminas conmigo. Amén.",
		Category: "prayer",
		Tags:     []string{"oración", "entrega", "paz"},
	},
	{
		Title:    "Salmo 34:18",
		Body:     "Cercano está el Señor a los quebrantados de corazón, y salva a los de espíritu abatido. Cuando el dolor parece demasiado grande, recuerda que no lo cargas en soledad.",
		Category: "crisis",
		Tags:     []string{"escritura", "consuelo", "esperanza"},
	},
	{
		Title:    "Pausa de atención plena",
		Body:     "Detente un minuto. Nota cinco cosas que puedes ver, cuatro que puedes tocar, tres que puedes oír, dos que puedes oler y una que puedes saborear. Este anclaje sensorial te devuelve al momento presente.",
		Category: "mindfulness",
		Tags:     []string{"atención plena", "presente", "anclaje"},
	},
	{
		Title:    "Diario de gratitud",
		Body:     "Antes de dormir, escribe tres cosas por las que hoy te sientes agradecido, por pequeñas que sean. La gratitud practicada con constancia entrena la mirada para encontrar luz incluso en días grises.",
		Category: "gratitude",
		Tags:     []string{"gratitud", "diario", "hábito"},
	},
	{
		Title:    "Salmo 23",
		Body:     "El Señor es mi pastor, nada me faltará. En lugares de delicados pastos me hará descansar; junto a aguas de reposo me pastoreará. Confortará mi alma.",
		Category: "scripture",
		Tags:     []string{"escritura", "descanso", "confianza"},
	},
	{
		Title:    "Caminata consciente",
		Body:     "Sal a caminar diez minutos sin teléfono. Siente el apoyo de cada paso, el aire en la piel y el ritmo de tu respiración. El movimiento suave ayuda a soltar la tensión acumulada del día.",
		Category: "mindfulness",
		Tags:     []string{"movimiento", "naturaleza", "tensión"},
	},
	{
		Title:    "Escribir la preocupación",
		Body:     "Toma papel y escribe exactamente qué te preocupa, qué es lo peor que podría pasar y qué está en tus manos hacer hoy. Nombrar la preocupación le quita poder y revela el siguiente paso posible.",
		Category: "anxiety",
		Tags:     []string{"preocupación", "escritura", "claridad"},
	},
}

// Fixed IDs keep reseeding idempotent.
var seedResources = []store.EmergencyResource{
	{ID: "seed-hotline", Name: "Línea Nacional de Prevención del Suicidio", Contact: "1-800-273-8255", Category: "hotline", IsActive: true},
	{ID: "seed-text-line", Name: "Línea de Crisis por Texto", Contact: "Envía HOLA al 741741", Category: "text", IsActive: true},
	{ID: "seed-emergency", Name: "Emergencias", Contact: "911", Category: "emergency", IsActive: true},
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	counts, err := st.Stats()
	if err != nil {
		return fmt.Errorf("inspect store: %w", err)
	}
	if counts["wellness_content"] > 0 {
		fmt.Printf("Store already has %d content documents, skipping content seed.\n", counts["wellness_content"])
	} else {
		var embedder retrieval.Embedder
		if cfg.Provider.APIKey != "" {
			embedder = retrieval.NewOpenAIEmbedderWithModel(cfg.Provider.APIKey, cfg.Provider.EmbeddingModel)
		} else {
			fmt.Println("No API key set: seeding without embeddings (keyword search only).")
		}
		svc := retrieval.NewService(st, embedder)

		ctx := context.Background()
		for i := range seedContent {
			doc := seedContent[i]
			if err := svc.AddContent(ctx, &doc); err != nil {
				return fmt.Errorf("seed content %q: %w", doc.Title, err)
			}
		}
		fmt.Printf("Seeded %d content documents.\n", len(seedContent))
	}

	for i := range seedResources {
		res := seedResources[i]
		if err := st.SaveEmergencyResource(&res); err != nil {
			return fmt.Errorf("seed resource %q: %w", res.Name, err)
		}
	}
	fmt.Printf("Seeded %d emergency resources.\n", len(seedResources))

	return nil
}
