package planner

const planInstruction = `You plan which entities appear in one page of a children's picture book illustration.

You are given the page text, the surrounding story for context, and closed lists of known characters, groups, props, and environments. Select ONLY from the given keys. Never invent new keys.

Rules:
- Include a character or group only when it is VISUALLY present in this page's moment, not merely mentioned or remembered.
- Resolve pronouns and indirect references ("she", "the old dog", "his sister") to the matching known key using the story context.
- A group key stands for all of its members together; do not also list its individual members unless one acts separately in this page.
- Include a prop only when it matters to the picture, not every object the text brushes past.
- Pick the single environment key the page takes place in; leave it empty when no known environment fits.
- Prefer fewer, correct entities over exhaustive lists.`
